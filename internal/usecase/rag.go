package usecase

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"waba-admin/internal/domain"
	"waba-admin/internal/repository"
)

type RAGStore interface {
	Get(ctx context.Context, phoneNumberID string) (*domain.RAGRecord, error)
	Save(ctx context.Context, rec domain.RAGRecord) error
	Delete(ctx context.Context, phoneNumberID string) error
}

// RAGService manages the knowledge text the auto-reply bot answers from.
type RAGService struct {
	store RAGStore
}

func NewRAGService(s RAGStore) (*RAGService, error) {
	if s == nil {
		return nil, errors.New("usecase: rag store must not be nil")
	}
	return &RAGService{store: s}, nil
}

func (s *RAGService) Get(ctx context.Context, phoneNumberID string) (domain.RAGRecord, error) {
	if phoneNumberID == "" {
		return domain.RAGRecord{}, newError(ErrorInvalidInput, "missing_phone_number_id", "phone_number_id is required", nil)
	}
	rec, err := s.store.Get(ctx, phoneNumberID)
	if err != nil {
		return domain.RAGRecord{}, upstreamError("dynamodb_rag_read_error", "", err)
	}
	if rec == nil {
		return domain.RAGRecord{}, newError(ErrorNotFound, "rag_not_found", "Data not found", nil)
	}
	return *rec, nil
}

type SaveRAGInput struct {
	PhoneNumberID string `json:"-"`
	BusinessID    string `json:"business_id"`
	RAGData       string `json:"rag_data"`
}

func (s *RAGService) Save(ctx context.Context, in SaveRAGInput) error {
	if in.PhoneNumberID == "" {
		return newError(ErrorInvalidInput, "missing_phone_number_id", "phone_number_id is required", nil)
	}
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.BusinessID, validation.Required),
		validation.Field(&in.RAGData, validation.Required),
	); err != nil {
		return invalid("missing_fields", err)
	}
	err := s.store.Save(ctx, domain.RAGRecord{
		BusinessID:    in.BusinessID,
		PhoneNumberID: in.PhoneNumberID,
		RAGData:       in.RAGData,
	})
	if err != nil {
		return upstreamError("dynamodb_rag_write_error", "", err)
	}
	return nil
}

func (s *RAGService) Delete(ctx context.Context, phoneNumberID string) error {
	if phoneNumberID == "" {
		return newError(ErrorInvalidInput, "missing_phone_number_id", "phone_number_id is required", nil)
	}
	err := s.store.Delete(ctx, phoneNumberID)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrorNotFound, "rag_not_found", "Data not found", err)
	}
	if err != nil {
		return upstreamError("dynamodb_rag_delete_error", "", err)
	}
	return nil
}
