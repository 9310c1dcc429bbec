package domain

import "time"

// WABACredentials are the WhatsApp Business Account details stored per user.
type WABACredentials struct {
	UserID        string `json:"user_id"`
	WABAID        string `json:"waba_id"`
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
}

// Complete reports whether all three account fields are set.
func (c WABACredentials) Complete() bool {
	return c.WABAID != "" && c.PhoneNumberID != "" && c.AccessToken != ""
}

// WABARegistration is the raw account record saved after Embedded Signup.
type WABARegistration struct {
	UserID      string `json:"user_id"`
	WABAID      string `json:"waba_id"`
	PhoneNumber string `json:"phone_number"`
}

// VerifiedPhone records a phone number confirmed through the SMS code flow.
type VerifiedPhone struct {
	UserID        string    `json:"user_id"`
	PhoneNumberID string    `json:"phone_number_id"`
	PhoneNumber   string    `json:"phone_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// RAGRecord holds the business knowledge text used by the auto-reply bot.
type RAGRecord struct {
	BusinessID    string `json:"business_id"`
	PhoneNumberID string `json:"phone_number_id"`
	RAGData       string `json:"rag_data"`
}

// User is an authenticated dashboard account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
