package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"waba-admin/internal/domain"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("store: not found")

// querier is the subset of *pgxpool.Pool used by PostgresStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore handles the Supabase Postgres tables behind the dashboard.
type PostgresStore struct {
	db    querier
	close func()
	now   func() time.Time
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &PostgresStore{db: pool, close: pool.Close, now: time.Now}, nil
}

func newWithQuerier(db querier) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}, now: time.Now}
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetWABACredentials returns the account stored for userID, or nil if none.
func (s *PostgresStore) GetWABACredentials(ctx context.Context, userID string) (*domain.WABACredentials, error) {
	creds := &domain.WABACredentials{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT coalesce(waba_id, ''), coalesce(phone_number_id, ''), coalesce(access_token, '')
		FROM waba_data WHERE user_id = $1
	`, userID).Scan(&creds.WABAID, &creds.PhoneNumberID, &creds.AccessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: GetWABACredentials: %w", err)
	}
	return creds, nil
}

// UpsertWABACredentials writes the account for a user, replacing any previous one.
func (s *PostgresStore) UpsertWABACredentials(ctx context.Context, creds domain.WABACredentials) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO waba_data (user_id, waba_id, phone_number_id, access_token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET waba_id = EXCLUDED.waba_id,
			phone_number_id = EXCLUDED.phone_number_id,
			access_token = EXCLUDED.access_token
	`, creds.UserID, creds.WABAID, creds.PhoneNumberID, creds.AccessToken)
	if err != nil {
		return fmt.Errorf("store: UpsertWABACredentials: %w", err)
	}
	return nil
}

// UserIDByPhoneNumberID returns the owner of a business phone number.
func (s *PostgresStore) UserIDByPhoneNumberID(ctx context.Context, phoneNumberID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		SELECT user_id FROM waba_data WHERE phone_number_id = $1 LIMIT 1
	`, phoneNumberID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("store: UserIDByPhoneNumberID: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) SaveWABA(ctx context.Context, reg domain.WABARegistration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO waba (user_id, waba_id, phone_number) VALUES ($1, $2, $3)
	`, reg.UserID, reg.WABAID, reg.PhoneNumber)
	if err != nil {
		return fmt.Errorf("store: SaveWABA: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertVerifiedPhone(ctx context.Context, vp domain.VerifiedPhone) error {
	if vp.CreatedAt.IsZero() {
		vp.CreatedAt = s.now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO verified_phones (user_id, phone_number_id, phone_number, created_at)
		VALUES ($1, $2, $3, $4)
	`, vp.UserID, vp.PhoneNumberID, vp.PhoneNumber, vp.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: InsertVerifiedPhone: %w", err)
	}
	return nil
}

// CreateTemplate inserts a message template and returns its id.
func (s *PostgresStore) CreateTemplate(ctx context.Context, t domain.Template) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO templates (user_id, template_name, category, message_body)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, t.UserID, t.TemplateName, t.Category, t.MessageBody).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: CreateTemplate: %w", err)
	}
	return id, nil
}

// LatestSubscription returns the most recently created subscription, or nil.
func (s *PostgresStore) LatestSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub := &domain.Subscription{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT status, subscription_end, coalesce(payment_id, ''), amount, created_at
		FROM subscriptions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, userID).Scan(&sub.Status, &sub.SubscriptionEnd, &sub.PaymentID, &sub.Amount, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: LatestSubscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, status, subscription_end, payment_id, amount)
		VALUES ($1, $2, $3, $4, $5)
	`, sub.UserID, sub.Status, sub.SubscriptionEnd, sub.PaymentID, sub.Amount)
	if err != nil {
		return fmt.Errorf("store: InsertSubscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]domain.AdminUser, error) {
	rows, err := s.db.Query(ctx, `
		SELECT contact, coalesce(category, ''), coalesce(name, ''), coalesce(email, ''),
			coalesce(chat_count, 0), last_reset, subscription_end
		FROM users ORDER BY contact
	`)
	if err != nil {
		return nil, fmt.Errorf("store: ListUsers: %w", err)
	}
	defer rows.Close()

	users := make([]domain.AdminUser, 0)
	for rows.Next() {
		var u domain.AdminUser
		if err := rows.Scan(&u.Contact, &u.Category, &u.Name, &u.Email, &u.ChatCount, &u.LastReset, &u.SubscriptionEnd); err != nil {
			return nil, fmt.Errorf("store: ListUsers scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListUsers rows: %w", err)
	}
	return users, nil
}

// UpdateUser changes a user's name and email. Empty values leave the
// column unchanged.
func (s *PostgresStore) UpdateUser(ctx context.Context, contact, name, email string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = coalesce(nullif($2, ''), name), email = coalesce(nullif($3, ''), email)
		WHERE contact = $1
	`, contact, name, email)
	if err != nil {
		return fmt.Errorf("store: UpdateUser: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT invoice_id, contact, amount, date, status
		FROM payments ORDER BY date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: ListPayments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.InvoiceID, &p.Contact, &p.Amount, &p.Date, &p.Status); err != nil {
			return nil, fmt.Errorf("store: ListPayments scan: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListPayments rows: %w", err)
	}
	return payments, nil
}

// VerifyPayment marks a single invoice as verified.
func (s *PostgresStore) VerifyPayment(ctx context.Context, invoiceID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payments SET status = $2 WHERE invoice_id = $1
	`, invoiceID, domain.PaymentVerified)
	if err != nil {
		return fmt.Errorf("store: VerifyPayment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
