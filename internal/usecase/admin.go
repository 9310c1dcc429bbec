package usecase

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"waba-admin/internal/domain"
	"waba-admin/internal/store"
)

type AdminStore interface {
	CreateTemplate(ctx context.Context, t domain.Template) (string, error)
	ListUsers(ctx context.Context) ([]domain.AdminUser, error)
	UpdateUser(ctx context.Context, contact, name, email string) error
}

// AdminService covers message templates and the end-user table.
type AdminService struct {
	store AdminStore
}

func NewAdminService(s AdminStore) (*AdminService, error) {
	if s == nil {
		return nil, errors.New("usecase: admin store must not be nil")
	}
	return &AdminService{store: s}, nil
}

type TemplateInput struct {
	UserID       string `json:"user_id"`
	TemplateName string `json:"template_name"`
	Category     string `json:"category"`
	MessageBody  string `json:"message_body"`
}

func (s *AdminService) CreateTemplate(ctx context.Context, in TemplateInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.TemplateName, validation.Required, validation.Length(1, 512)),
		validation.Field(&in.Category, validation.Required),
		validation.Field(&in.MessageBody, validation.Required),
	); err != nil {
		return "", invalid("missing_fields", err)
	}
	id, err := s.store.CreateTemplate(ctx, domain.Template{
		UserID:       in.UserID,
		TemplateName: in.TemplateName,
		Category:     in.Category,
		MessageBody:  in.MessageBody,
	})
	if err != nil {
		return "", upstreamError("supabase_template_error", "Failed to create template", err)
	}
	return id, nil
}

func (s *AdminService) Users(ctx context.Context) ([]domain.AdminUser, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, upstreamError("supabase_users_error", "", err)
	}
	if users == nil {
		users = []domain.AdminUser{}
	}
	return users, nil
}

type UpdateUserInput struct {
	Contact string `json:"-"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// UpdateUser edits the display name and email of an end user. Empty fields
// keep their stored value.
func (s *AdminService) UpdateUser(ctx context.Context, in UpdateUserInput) error {
	if strings.TrimSpace(in.Contact) == "" {
		return newError(ErrorInvalidInput, "missing_contact", "contact is required", nil)
	}
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.Email, is.EmailFormat),
	); err != nil {
		return invalid("invalid_email", err)
	}
	if in.Name == "" && in.Email == "" {
		return newError(ErrorInvalidInput, "nothing_to_update", "name or email is required", nil)
	}
	err := s.store.UpdateUser(ctx, in.Contact, in.Name, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrorNotFound, "user_not_found", "user not found", err)
	}
	if err != nil {
		return upstreamError("supabase_user_update_error", "", err)
	}
	return nil
}
