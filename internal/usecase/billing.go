package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"waba-admin/internal/domain"
	"waba-admin/internal/integrations/midtrans"
	"waba-admin/internal/store"
)

const (
	defaultCustomerEmail = "user@example.com"
	subscriptionPeriod   = 30 * 24 * time.Hour
)

type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req midtrans.TransactionRequest) (midtrans.Transaction, error)
}

type BillingStore interface {
	LatestSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	InsertSubscription(ctx context.Context, sub domain.Subscription) error
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	VerifyPayment(ctx context.Context, invoiceID string) error
}

// BillingService handles subscription checkout and payment records.
type BillingService struct {
	gateway PaymentGateway
	store   BillingStore
	now     func() time.Time
}

func NewBillingService(g PaymentGateway, s BillingStore) (*BillingService, error) {
	if g == nil {
		return nil, errors.New("usecase: payment gateway must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: billing store must not be nil")
	}
	return &BillingService{gateway: g, store: s, now: time.Now}, nil
}

type CheckoutInput struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Email  string `json:"email"`
}

type CheckoutOutput struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
	OrderID     string `json:"order_id"`
}

// Checkout opens a Snap payment for a subscription.
func (s *BillingService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Email, is.EmailFormat),
	); err != nil {
		return CheckoutOutput{}, invalid("missing_fields", err)
	}
	email := in.Email
	if email == "" {
		email = defaultCustomerEmail
	}
	orderID := fmt.Sprintf("SUB-%s-%d", in.UserID, s.now().UnixMilli())

	tx, err := s.gateway.CreateTransaction(ctx, midtrans.TransactionRequest{
		OrderID:     orderID,
		GrossAmount: in.Amount,
		Email:       email,
	})
	if err != nil {
		return CheckoutOutput{}, upstreamError("midtrans_error", "Failed to initiate payment", err)
	}
	return CheckoutOutput{Token: tx.Token, RedirectURL: tx.RedirectURL, OrderID: orderID}, nil
}

type SubscriptionStatus struct {
	Subscription *domain.Subscription `json:"subscription"`
	Active       bool                 `json:"active"`
}

func (s *BillingService) Subscription(ctx context.Context, userID string) (SubscriptionStatus, error) {
	if userID == "" {
		return SubscriptionStatus{}, newError(ErrorInvalidInput, "missing_user_id", "user_id is required", nil)
	}
	sub, err := s.store.LatestSubscription(ctx, userID)
	if err != nil {
		return SubscriptionStatus{}, upstreamError("supabase_subscription_error", "", err)
	}
	if sub == nil {
		return SubscriptionStatus{}, nil
	}
	return SubscriptionStatus{Subscription: sub, Active: sub.Active(s.now())}, nil
}

type ActivateInput struct {
	UserID    string `json:"user_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// Activate records a paid subscription running 30 days from now.
func (s *BillingService) Activate(ctx context.Context, in ActivateInput) (domain.Subscription, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.PaymentID, validation.Required),
		validation.Field(&in.Amount, validation.Required, validation.Min(int64(1))),
	); err != nil {
		return domain.Subscription{}, invalid("missing_fields", err)
	}
	now := s.now().UTC()
	sub := domain.Subscription{
		UserID:          in.UserID,
		Status:          domain.SubscriptionActive,
		SubscriptionEnd: now.Add(subscriptionPeriod).Unix(),
		PaymentID:       in.PaymentID,
		Amount:          in.Amount,
		CreatedAt:       now,
	}
	if err := s.store.InsertSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, upstreamError("supabase_subscription_error", "Failed to activate subscription", err)
	}
	return sub, nil
}

func (s *BillingService) Payments(ctx context.Context) ([]domain.Payment, error) {
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return nil, upstreamError("supabase_payments_error", "", err)
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

func (s *BillingService) VerifyPayment(ctx context.Context, invoiceID string) error {
	if invoiceID == "" {
		return newError(ErrorInvalidInput, "missing_invoice_id", "invoice_id is required", nil)
	}
	err := s.store.VerifyPayment(ctx, invoiceID)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrorNotFound, "payment_not_found", "payment not found", err)
	}
	if err != nil {
		return upstreamError("supabase_payment_verify_error", "", err)
	}
	return nil
}
