package usecase

import (
	"context"
	"errors"
	"strings"

	"waba-admin/internal/domain"
	"waba-admin/internal/integrations/supabase"
)

type Authenticator interface {
	GetUser(ctx context.Context, accessToken string) (domain.User, error)
}

type CredentialStore interface {
	GetWABACredentials(ctx context.Context, userID string) (*domain.WABACredentials, error)
}

// SessionService resolves the signed-in user and their WhatsApp account.
type SessionService struct {
	auth  Authenticator
	creds CredentialStore
}

func NewSessionService(a Authenticator, c CredentialStore) (*SessionService, error) {
	if a == nil {
		return nil, errors.New("usecase: authenticator must not be nil")
	}
	if c == nil {
		return nil, errors.New("usecase: credential store must not be nil")
	}
	return &SessionService{auth: a, creds: c}, nil
}

type SessionOutput struct {
	User            domain.User            `json:"user"`
	Credentials     domain.WABACredentials `json:"waba"`
	HasCompleteData bool                   `json:"hasCompleteData"`
}

func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domain.User{}, newError(ErrorUnauthorized, "missing_bearer_token", "Unauthorized", nil)
	}
	user, err := s.auth.GetUser(ctx, accessToken)
	if errors.Is(err, supabase.ErrUnauthorized) {
		return domain.User{}, newError(ErrorUnauthorized, "invalid_token", "Unauthorized", err)
	}
	if err != nil {
		return domain.User{}, upstreamError("supabase_auth_error", "", err)
	}
	return user, nil
}

// Authorize authenticates accessToken. A non-empty userID must be the
// token's own user.
func (s *SessionService) Authorize(ctx context.Context, accessToken, userID string) (domain.User, error) {
	user, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return domain.User{}, err
	}
	if userID = strings.TrimSpace(userID); userID != "" && userID != user.ID {
		return domain.User{}, newError(ErrorForbidden, "user_mismatch", "Forbidden", nil)
	}
	return user, nil
}

// Session returns the user for accessToken with their stored account. A
// user without an account gets empty credentials and HasCompleteData false.
func (s *SessionService) Session(ctx context.Context, accessToken string) (SessionOutput, error) {
	user, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return SessionOutput{}, err
	}
	creds, err := s.creds.GetWABACredentials(ctx, user.ID)
	if err != nil {
		return SessionOutput{}, upstreamError("supabase_waba_data_error", "", err)
	}
	out := SessionOutput{User: user, Credentials: domain.WABACredentials{UserID: user.ID}}
	if creds != nil {
		out.Credentials = *creds
		out.HasCompleteData = creds.Complete()
	}
	return out, nil
}
