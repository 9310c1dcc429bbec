package domain

import "time"

const (
	SubscriptionActive = "active"

	PaymentPending  = "pending"
	PaymentVerified = "verified"
)

type Subscription struct {
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	SubscriptionEnd int64     `json:"subscription_end"`
	PaymentID       string    `json:"payment_id"`
	Amount          int64     `json:"amount"`
	CreatedAt       time.Time `json:"created_at"`
}

// Active reports whether the subscription is active at now.
func (s Subscription) Active(now time.Time) bool {
	return s.Status == SubscriptionActive && s.SubscriptionEnd > now.Unix()
}

type Template struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	TemplateName string `json:"template_name"`
	Category     string `json:"category"`
	MessageBody  string `json:"message_body"`
}

// AdminUser is a row of the users table shown to administrators.
type AdminUser struct {
	Contact         string     `json:"contact"`
	Category        string     `json:"category"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	ChatCount       int        `json:"chat_count"`
	LastReset       *time.Time `json:"last_reset,omitempty"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
}

type Payment struct {
	InvoiceID string    `json:"invoice_id"`
	Contact   string    `json:"contact"`
	Amount    int64     `json:"amount"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
}
