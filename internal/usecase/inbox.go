package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"

	"waba-admin/internal/chatsync"
	"waba-admin/internal/domain"
	"waba-admin/internal/integrations/sendrelay"
	"waba-admin/internal/repository"
	"waba-admin/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type MessageStore interface {
	FetchMessages(ctx context.Context, contact, phoneNumberID string, limit int, startKey json.RawMessage) (repository.MessagePage, error)
	LastMessage(ctx context.Context, contact, phoneNumberID string) (*domain.Message, error)
	FetchUniqueContacts(ctx context.Context, phoneNumberID string) ([]string, error)
	FetchConversation(ctx context.Context, phoneNumberID, contact string, limit int, before string) ([]domain.Message, error)
	SaveMessage(ctx context.Context, rec domain.MessageRecord) error
}

type SendRelay interface {
	Send(ctx context.Context, req sendrelay.Request) (string, error)
}

type TextSender interface {
	SendText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error)
}

type OwnerLookup interface {
	UserIDByPhoneNumberID(ctx context.Context, phoneNumberID string) (string, error)
}

// InboxService serves the conversation routes of the dashboard.
type InboxService struct {
	messages MessageStore
	relay    SendRelay
	sender   TextSender
	owners   OwnerLookup
	now      func() time.Time
}

func NewInboxService(m MessageStore, relay SendRelay, sender TextSender, owners OwnerLookup) (*InboxService, error) {
	if m == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	if relay == nil {
		return nil, errors.New("usecase: send relay must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: text sender must not be nil")
	}
	if owners == nil {
		return nil, errors.New("usecase: owner lookup must not be nil")
	}
	return &InboxService{messages: m, relay: relay, sender: sender, owners: owners, now: time.Now}, nil
}

type ContactsInput struct {
	PhoneNumberID string `json:"phoneNumberId"`
}

type ContactsOutput struct {
	Contacts     []string                      `json:"contacts"`
	LastMessages map[string]domain.LastMessage `json:"lastMessages"`
}

// GetContacts lists every contact that exchanged messages with the number,
// with a preview of each contact's latest message.
func (s *InboxService) GetContacts(ctx context.Context, in ContactsInput) (ContactsOutput, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumberID, validation.Required),
	); err != nil {
		return ContactsOutput{}, invalid("missing_phone_number_id", err)
	}

	contacts, err := s.messages.FetchUniqueContacts(ctx, in.PhoneNumberID)
	if err != nil {
		return ContactsOutput{}, upstreamError("dynamodb_contacts_error", "", err)
	}
	last := make(map[string]domain.LastMessage, len(contacts))
	for _, contact := range contacts {
		msg, err := s.messages.LastMessage(ctx, contact, in.PhoneNumberID)
		if err != nil {
			return ContactsOutput{}, upstreamError("dynamodb_last_message_error", "", err)
		}
		if msg == nil {
			continue
		}
		last[contact] = domain.LastMessage{Text: chatsync.PreviewText(msg.Message), Time: msg.Timestamp}
	}
	return ContactsOutput{Contacts: contacts, LastMessages: last}, nil
}

type MessagesInput struct {
	UserID           string          `json:"userId"`
	PhoneNumberID    string          `json:"phoneNumberId"`
	Limit            int             `json:"limit"`
	LastEvaluatedKey json.RawMessage `json:"lastEvaluatedKey"`
}

type MessagesOutput struct {
	Messages         []domain.Message `json:"messages"`
	LastEvaluatedKey json.RawMessage  `json:"lastEvaluatedKey"`
}

// GetMessages returns one page of a conversation. The cursor is passed
// through unchanged in both directions.
func (s *InboxService) GetMessages(ctx context.Context, in MessagesInput) (MessagesOutput, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.PhoneNumberID, validation.Required),
		validation.Field(&in.Limit, validation.Min(0), validation.Max(maxPageSize)),
	); err != nil {
		return MessagesOutput{}, invalid("missing_fields", err)
	}
	if err := repository.ValidateCursor(in.LastEvaluatedKey); err != nil {
		return MessagesOutput{}, invalidCursor(err)
	}
	limit := in.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	page, err := s.messages.FetchMessages(ctx, in.UserID, in.PhoneNumberID, limit, in.LastEvaluatedKey)
	if errors.Is(err, repository.ErrInvalidCursor) {
		return MessagesOutput{}, invalidCursor(err)
	}
	if err != nil {
		return MessagesOutput{}, upstreamError("dynamodb_messages_error", "", err)
	}
	msgs := page.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return MessagesOutput{Messages: msgs, LastEvaluatedKey: page.LastEvaluatedKey}, nil
}

func invalidCursor(err error) *Error {
	return newError(ErrorInvalidInput, "invalid_cursor", "lastEvaluatedKey is invalid", err)
}

type SendInput struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Text          string `json:"text"`
	AccessToken   string `json:"access_token"`
}

// SendMessage forwards a text message to the messaging backend, which
// delivers it and records it.
func (s *InboxService) SendMessage(ctx context.Context, in SendInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumberID, validation.Required),
		validation.Field(&in.To, validation.Required),
		validation.Field(&in.Text, validation.Required),
		validation.Field(&in.AccessToken, validation.Required),
	); err != nil {
		return "", invalid("missing_fields", err)
	}

	id, err := s.relay.Send(ctx, sendrelay.Request{
		PhoneNumberID: in.PhoneNumberID,
		To:            in.To,
		Text:          in.Text,
		AccessToken:   in.AccessToken,
	})
	if err != nil {
		return "", upstreamError("send_relay_error", "", err)
	}
	return id, nil
}

type ConversationInput struct {
	PhoneNumberID string `json:"phone_number_id"`
	Contact       string `json:"contact"`
	Limit         int    `json:"limit"`
	Before        string `json:"before"`
}

// ListConversation reads a conversation newest first, optionally only
// messages strictly older than Before.
func (s *InboxService) ListConversation(ctx context.Context, in ConversationInput) ([]domain.Message, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumberID, validation.Required),
		validation.Field(&in.Contact, validation.Required),
		validation.Field(&in.Limit, validation.Min(0), validation.Max(maxPageSize)),
		validation.Field(&in.Before, validation.By(isTimestamp)),
	); err != nil {
		return nil, invalid("invalid_query", err)
	}
	limit := in.Limit
	if limit == 0 {
		limit = defaultPageSize
	}
	before := ""
	if in.Before != "" {
		before, _ = chatsync.NormalizeTimestamp(in.Before)
	}

	msgs, err := s.messages.FetchConversation(ctx, in.PhoneNumberID, in.Contact, limit, before)
	if err != nil {
		return nil, upstreamError("dynamodb_conversation_error", "", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

type WhatsAppSendInput struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Text          string `json:"text"`
	AccessToken   string `json:"-"`
}

// SendWhatsApp sends a text straight through the Graph API with the
// caller's token and stores the sent message under the contact.
func (s *InboxService) SendWhatsApp(ctx context.Context, in WhatsAppSendInput) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, &in,
		validation.Field(&in.PhoneNumberID, validation.Required),
		validation.Field(&in.To, validation.Required),
		validation.Field(&in.Text, validation.Required),
	); err != nil {
		return "", invalid("missing_fields", err)
	}
	if in.AccessToken == "" {
		return "", newError(ErrorUnauthorized, "missing_bearer_token", "missing bearer token", nil)
	}

	owner, err := s.owners.UserIDByPhoneNumberID(ctx, in.PhoneNumberID)
	if errors.Is(err, store.ErrNotFound) {
		return "", newError(ErrorNotFound, "waba_not_found", "no account is registered for this phone number", err)
	}
	if err != nil {
		return "", upstreamError("supabase_waba_lookup_error", "", err)
	}

	messageID, err := s.sender.SendText(ctx, in.PhoneNumberID, in.AccessToken, in.To, in.Text)
	if err != nil {
		return "", upstreamError("graph_send_error", "", err)
	}

	rec := repository.NewOutgoingRecord(in.To, in.PhoneNumberID, messageID, in.Text, s.now())
	rec.OwnerID = owner
	if err := s.messages.SaveMessage(ctx, rec); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("message_id", messageID).Msg("store sent message")
		return "", upstreamError("dynamodb_write_error", "", err)
	}
	return messageID, nil
}

func isTimestamp(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := chatsync.NormalizeTimestamp(s); !ok {
		return errors.New("must be an ISO-8601 timestamp")
	}
	return nil
}
