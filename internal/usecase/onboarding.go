package usecase

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"waba-admin/internal/domain"
)

type GraphAPI interface {
	ExchangeToken(ctx context.Context, code string) (string, error)
	RequestVerification(ctx context.Context, phoneNumber string) (string, error)
	VerifyCode(ctx context.Context, phoneNumber, code string) (string, error)
	SubscribeWebhooks(ctx context.Context, wabaID, accessToken string) error
}

type AccountStore interface {
	InsertVerifiedPhone(ctx context.Context, vp domain.VerifiedPhone) error
	SaveWABA(ctx context.Context, reg domain.WABARegistration) error
	UpsertWABACredentials(ctx context.Context, creds domain.WABACredentials) error
}

// OnboardingService drives Embedded Signup: token exchange, phone
// verification, webhook subscription and persisting the account.
type OnboardingService struct {
	graph    GraphAPI
	accounts AccountStore
	now      func() time.Time
}

func NewOnboardingService(g GraphAPI, a AccountStore) (*OnboardingService, error) {
	if g == nil {
		return nil, errors.New("usecase: graph client must not be nil")
	}
	if a == nil {
		return nil, errors.New("usecase: account store must not be nil")
	}
	return &OnboardingService{graph: g, accounts: a, now: time.Now}, nil
}

type ExchangeTokenInput struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

// ExchangeToken trades an Embedded Signup authorization code for a business
// access token.
func (s *OnboardingService) ExchangeToken(ctx context.Context, in ExchangeTokenInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.Code, validation.Required),
		validation.Field(&in.UserID, validation.Required),
	); err != nil {
		return "", invalid("missing_fields", err)
	}
	token, err := s.graph.ExchangeToken(ctx, in.Code)
	if err != nil {
		return "", upstreamError("graph_exchange_error", "Failed to exchange token", err)
	}
	return token, nil
}

type VerifyPhoneInput struct {
	PhoneNumber string `json:"phone_number"`
}

// RequestVerification starts SMS verification of a phone number and returns
// the verification id.
func (s *OnboardingService) RequestVerification(ctx context.Context, in VerifyPhoneInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumber, validation.Required, phoneNumberRule),
	); err != nil {
		return "", invalid("invalid_phone_number", err)
	}
	id, err := s.graph.RequestVerification(ctx, in.PhoneNumber)
	if err != nil {
		return "", upstreamError("graph_verification_error", "Gagal memverifikasi nomor", err)
	}
	return id, nil
}

type VerifyCodeInput struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
	UserID      string `json:"user_id"`
}

// VerifyCode confirms the SMS code and records the verified number.
func (s *OnboardingService) VerifyCode(ctx context.Context, in VerifyCodeInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumber, validation.Required, phoneNumberRule),
		validation.Field(&in.Code, validation.Required, is.Digit),
		validation.Field(&in.UserID, validation.Required),
	); err != nil {
		return "", invalid("missing_fields", err)
	}
	phoneNumberID, err := s.graph.VerifyCode(ctx, in.PhoneNumber, in.Code)
	if err != nil {
		return "", upstreamError("graph_verify_code_error", "Gagal memverifikasi kode", err)
	}
	err = s.accounts.InsertVerifiedPhone(ctx, domain.VerifiedPhone{
		UserID:        in.UserID,
		PhoneNumberID: phoneNumberID,
		PhoneNumber:   in.PhoneNumber,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return "", upstreamError("supabase_verified_phone_error", "Gagal menyimpan nomor", err)
	}
	return phoneNumberID, nil
}

type SubscribeInput struct {
	WABAID      string `json:"waba_id"`
	AccessToken string `json:"access_token"`
}

func (s *OnboardingService) SubscribeWebhooks(ctx context.Context, in SubscribeInput) error {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.WABAID, validation.Required),
		validation.Field(&in.AccessToken, validation.Required),
	); err != nil {
		return invalid("missing_fields", err)
	}
	if err := s.graph.SubscribeWebhooks(ctx, in.WABAID, in.AccessToken); err != nil {
		return upstreamError("graph_subscribe_error", "Failed to subscribe to webhooks", err)
	}
	return nil
}

type SaveWABAInput struct {
	UserID      string `json:"user_id"`
	WABAID      string `json:"waba_id"`
	PhoneNumber string `json:"phone_number"`
}

func (s *OnboardingService) SaveWABA(ctx context.Context, in SaveWABAInput) error {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.WABAID, validation.Required),
		validation.Field(&in.PhoneNumber, validation.Required),
	); err != nil {
		return invalid("missing_fields", err)
	}
	err := s.accounts.SaveWABA(ctx, domain.WABARegistration{
		UserID:      in.UserID,
		WABAID:      in.WABAID,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		return upstreamError("supabase_waba_error", "Failed to save WABA", err)
	}
	return nil
}

// SaveCredentials stores the account details the inbox needs, replacing any
// previous ones for the user.
func (s *OnboardingService) SaveCredentials(ctx context.Context, in domain.WABACredentials) error {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.WABAID, validation.Required),
		validation.Field(&in.PhoneNumberID, validation.Required),
		validation.Field(&in.AccessToken, validation.Required),
	); err != nil {
		return invalid("missing_fields", err)
	}
	if err := s.accounts.UpsertWABACredentials(ctx, in); err != nil {
		return upstreamError("supabase_waba_data_error", "Failed to save WABA data", err)
	}
	return nil
}
