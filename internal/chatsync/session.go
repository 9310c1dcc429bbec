// Package chatsync keeps a locally cached, ordered view of a business inbox
// in step with the dashboard API, including optimistic sends.
package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"waba-admin/internal/domain"
	"waba-admin/internal/metrics"
)

var (
	ErrIncompleteCredentials = errors.New("chatsync: incomplete WABA credentials")
	ErrInvalidSend           = errors.New("chatsync: contact, text and credentials are required")
)

// User-facing error strings recorded on the session.
const (
	msgIncomplete   = "Data WABA atau user tidak lengkap. Silakan selesaikan Embedded Signup di halaman Users."
	msgInvalidSend  = "Pastikan kontak dipilih, pesan terisi, dan data WABA lengkap."
	msgContactsFail = "Gagal memuat kontak: "
	msgMessagesFail = "Gagal memuat pesan: "
	msgSendFail     = "Gagal mengirim pesan: "
)

// Backend is the dashboard API as seen by the inbox.
type Backend interface {
	GetContacts(ctx context.Context, phoneNumberID string) (ContactsData, error)
	GetMessages(ctx context.Context, q MessagesQuery) (MessagesPage, error)
	SendMessage(ctx context.Context, req SendRequest) (string, error)
}

type MessagesQuery struct {
	UserID           string          `json:"userId"`
	PhoneNumberID    string          `json:"phoneNumberId"`
	Limit            int             `json:"limit"`
	LastEvaluatedKey json.RawMessage `json:"lastEvaluatedKey"`
}

type MessagesPage struct {
	Messages         []domain.Message `json:"messages"`
	LastEvaluatedKey json.RawMessage  `json:"lastEvaluatedKey"`
}

type SendRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Text          string `json:"text"`
	AccessToken   string `json:"access_token"`
}

// SendOutcome is the final state of an optimistic send.
type SendOutcome int

const (
	SendPending SendOutcome = iota
	SendConfirmed
	SendRolledBack
)

func (o SendOutcome) String() string {
	switch o {
	case SendConfirmed:
		return "confirmed"
	case SendRolledBack:
		return "rolled_back"
	default:
		return "pending"
	}
}

type SendResult struct {
	TempID    string
	MessageID string
	Outcome   SendOutcome
}

// View is a copy of the session state for rendering.
type View struct {
	Contacts     []string
	LastMessages map[string]domain.LastMessage
	Selected     string
	Messages     []domain.Message
	HasMore      bool
	Loading      bool
	Error        string
}

var newUUID = func() string { return uuid.NewString() }

// Session is the inbox state for one business account. It is driven by a
// single caller; the mutex only keeps View consistent while a fetch runs.
// Responses from a superseded contact switch are still applied.
type Session struct {
	backend Backend
	cache   *Cache
	creds   domain.WABACredentials
	now     func() time.Time

	mu           sync.Mutex
	contacts     []string
	lastMessages map[string]domain.LastMessage
	selected     string
	messages     []domain.Message
	hasMore      bool
	cursor       json.RawMessage
	loading      bool
	errMsg       string
}

type Option func(*Session)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(backend Backend, cache *Cache, creds domain.WABACredentials, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, errors.New("chatsync: backend must not be nil")
	}
	if cache == nil {
		return nil, errors.New("chatsync: cache must not be nil")
	}
	s := &Session{
		backend:      backend,
		cache:        cache,
		creds:        creds,
		now:          time.Now,
		lastMessages: make(map[string]domain.LastMessage),
		hasMore:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := make(map[string]domain.LastMessage, len(s.lastMessages))
	for k, v := range s.lastMessages {
		last[k] = v
	}
	return View{
		Contacts:     append([]string(nil), s.contacts...),
		LastMessages: last,
		Selected:     s.selected,
		Messages:     append([]domain.Message(nil), s.messages...),
		HasMore:      s.hasMore,
		Loading:      s.loading,
		Error:        s.errMsg,
	}
}

// FetchContacts serves the cached contact list unless it is missing, expired
// or invalidate is set, in which case it reloads from the backend.
func (s *Session) FetchContacts(ctx context.Context, invalidate bool) error {
	if !s.creds.Complete() {
		s.setError(msgIncomplete)
		return ErrIncompleteCredentials
	}
	wabaID := s.creds.WABAID

	if !invalidate {
		if data, ok := s.cache.LoadContacts(ctx, wabaID); ok {
			s.mu.Lock()
			s.lastMessages = data.LastMessages
			s.contacts = SortContacts(data.Contacts, data.LastMessages)
			s.mu.Unlock()
			return nil
		}
	} else if err := s.cache.Invalidate(ctx, ContactsKey(wabaID)); err != nil {
		log.Warn().Err(err).Msg("invalidate contacts cache")
	}

	s.setLoading(true)
	defer s.setLoading(false)

	data, err := s.backend.GetContacts(ctx, s.creds.PhoneNumberID)
	if err != nil {
		s.setError(msgContactsFail + err.Error())
		return fmt.Errorf("chatsync: fetch contacts: %w", err)
	}
	last := validLastMessages(data.LastMessages, true)
	sorted := SortContacts(data.Contacts, last)

	s.mu.Lock()
	s.contacts = sorted
	s.lastMessages = last
	s.mu.Unlock()

	s.saveContacts(ctx, ContactsData{Contacts: sorted, LastMessages: last})
	return nil
}

// FetchMessages loads the selected conversation. An initial fetch may be
// served from cache and replaces the view; a later fetch continues from the
// stored cursor, merges with the view and keeps the newest PageSize messages.
func (s *Session) FetchMessages(ctx context.Context, isInitial bool) error {
	s.mu.Lock()
	contact, cursor := s.selected, s.cursor
	s.mu.Unlock()
	if contact == "" {
		return nil
	}
	if !s.creds.Complete() {
		s.setError(msgIncomplete)
		return ErrIncompleteCredentials
	}
	wabaID := s.creds.WABAID

	if isInitial {
		if data, ok := s.cache.LoadMessages(ctx, wabaID, contact); ok {
			s.mu.Lock()
			s.messages = SortMessages(data.Messages)
			s.hasMore = data.HasMore
			s.cursor = data.LastEvaluatedKey
			s.mu.Unlock()
			return nil
		}
		cursor = nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	page, err := s.backend.GetMessages(ctx, MessagesQuery{
		UserID:           contact,
		PhoneNumberID:    s.creds.PhoneNumberID,
		Limit:            PageSize,
		LastEvaluatedKey: cursor,
	})
	if err != nil {
		s.setError(msgMessagesFail + err.Error())
		return fmt.Errorf("chatsync: fetch messages: %w", err)
	}

	fetched := make([]domain.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		ts, ok := NormalizeTimestamp(m.Timestamp)
		if !ok {
			continue
		}
		m.Timestamp = ts
		m.Status = ""
		if m.Direction == domain.DirectionOut {
			m.Status = domain.StatusSent
		}
		fetched = append(fetched, m)
	}
	fetched = SortMessages(fetched)

	s.mu.Lock()
	if isInitial {
		s.messages = fetched
	} else {
		s.messages = Window(merge(fetched, s.messages), PageSize)
	}
	s.hasMore = len(page.Messages) == PageSize
	s.cursor = page.LastEvaluatedKey
	contactsChanged := false
	if len(fetched) > 0 {
		latest := fetched[len(fetched)-1]
		if prev, ok := s.lastMessages[contact]; !ok || latest.Timestamp >= prev.Time {
			s.lastMessages[contact] = domain.LastMessage{Text: PreviewText(latest.Message), Time: latest.Timestamp}
			s.contacts = SortContacts(s.contacts, s.lastMessages)
			contactsChanged = true
		}
	}
	msgData := MessagesData{Messages: append([]domain.Message(nil), s.messages...), HasMore: s.hasMore, LastEvaluatedKey: s.cursor}
	contactsData := s.contactsDataLocked()
	s.mu.Unlock()

	if contactsChanged {
		s.saveContacts(ctx, contactsData)
	}
	if err := s.cache.SaveMessages(ctx, wabaID, contact, msgData); err != nil {
		log.Warn().Err(err).Str("contact", contact).Msg("save messages cache")
	}
	return nil
}

// Send appends text optimistically as a "sending" message, then confirms it
// with the server id or removes it again when the backend rejects it.
func (s *Session) Send(ctx context.Context, text string) (SendResult, error) {
	s.mu.Lock()
	contact := s.selected
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" || contact == "" || !s.creds.Complete() {
		s.setError(msgInvalidSend)
		return SendResult{}, ErrInvalidSend
	}

	tempID := newUUID()
	pending := domain.Message{
		MessageID: tempID,
		Contact:   contact,
		Message:   text,
		Direction: domain.DirectionOut,
		Timestamp: s.now().UTC().Format(isoMillis),
		Status:    domain.StatusSending,
	}

	s.mu.Lock()
	before := append([]domain.Message(nil), s.messages...)
	prevPreview, hadPreview := s.lastMessages[contact]
	s.messages = Window(SortMessages(append(before, pending)), PageSize)
	s.lastMessages[contact] = domain.LastMessage{Text: PreviewText(text), Time: pending.Timestamp}
	s.contacts = SortContacts(s.contacts, s.lastMessages)
	s.errMsg = ""
	s.mu.Unlock()

	messageID, err := s.backend.SendMessage(ctx, SendRequest{
		PhoneNumberID: s.creds.PhoneNumberID,
		To:            contact,
		Text:          text,
		AccessToken:   s.creds.AccessToken,
	})
	if err != nil {
		s.mu.Lock()
		s.messages = Window(merge(before, removeMessage(s.messages, tempID)), PageSize)
		if hadPreview {
			s.lastMessages[contact] = prevPreview
		} else {
			delete(s.lastMessages, contact)
		}
		s.contacts = SortContacts(s.contacts, s.lastMessages)
		s.errMsg = msgSendFail + err.Error()
		s.mu.Unlock()
		metrics.SendOutcomes.WithLabelValues(SendRolledBack.String()).Inc()
		return SendResult{TempID: tempID, Outcome: SendRolledBack}, fmt.Errorf("chatsync: send: %w", err)
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].MessageID == tempID {
			s.messages[i].MessageID = messageID
			s.messages[i].Status = domain.StatusSent
		}
	}
	if !containsString(s.contacts, contact) {
		s.contacts = SortContacts(append(s.contacts, contact), s.lastMessages)
	}
	contactsData := s.contactsDataLocked()
	msgData := MessagesData{Messages: append([]domain.Message(nil), s.messages...), HasMore: s.hasMore, LastEvaluatedKey: s.cursor}
	s.mu.Unlock()
	metrics.SendOutcomes.WithLabelValues(SendConfirmed.String()).Inc()

	s.saveContacts(ctx, contactsData)
	if err := s.cache.SaveMessages(ctx, s.creds.WABAID, contact, msgData); err != nil {
		log.Warn().Err(err).Str("contact", contact).Msg("save messages cache")
	}

	result := SendResult{TempID: tempID, MessageID: messageID, Outcome: SendConfirmed}
	if err := s.FetchMessages(ctx, true); err != nil {
		log.Warn().Err(err).Str("contact", contact).Msg("resync after send")
	}
	return result, nil
}

// Select switches the open conversation and loads it fresh.
func (s *Session) Select(ctx context.Context, contact string) error {
	contact = strings.TrimSpace(contact)
	s.mu.Lock()
	s.selected = contact
	s.messages = nil
	s.cursor = nil
	s.hasMore = true
	s.mu.Unlock()
	if contact == "" || !s.creds.Complete() {
		return nil
	}
	if err := s.cache.Invalidate(ctx, MessagesKey(s.creds.WABAID, contact)); err != nil {
		log.Warn().Err(err).Msg("invalidate messages cache")
	}
	return s.FetchMessages(ctx, true)
}

// NewChat adds number to the contact list if absent and opens it.
func (s *Session) NewChat(ctx context.Context, number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil
	}
	s.mu.Lock()
	added := false
	if !containsString(s.contacts, number) {
		s.contacts = append(s.contacts, number)
		added = true
	}
	data := s.contactsDataLocked()
	s.mu.Unlock()

	if added && s.creds.Complete() {
		s.saveContacts(ctx, data)
	}
	return s.Select(ctx, number)
}

// LoadMore fetches the next older page when one is available.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	ok := s.hasMore && !s.loading
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.FetchMessages(ctx, false)
}

// Refresh drops cached data for the contact list and the open conversation
// and reloads both.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	busy, contact := s.loading, s.selected
	s.mu.Unlock()
	if busy {
		return nil
	}
	errContacts := s.FetchContacts(ctx, true)
	if contact == "" || !s.creds.Complete() {
		return errContacts
	}
	if err := s.cache.Invalidate(ctx, MessagesKey(s.creds.WABAID, contact)); err != nil {
		log.Warn().Err(err).Msg("invalidate messages cache")
	}
	return errors.Join(errContacts, s.FetchMessages(ctx, true))
}

// ClearCache removes every cached entry of the account.
func (s *Session) ClearCache(ctx context.Context) error {
	if s.creds.WABAID == "" {
		return nil
	}
	return s.cache.Clear(ctx, s.creds.WABAID)
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// contactsDataLocked copies the contact state; s.mu must be held.
func (s *Session) contactsDataLocked() ContactsData {
	last := make(map[string]domain.LastMessage, len(s.lastMessages))
	for k, v := range s.lastMessages {
		last[k] = v
	}
	return ContactsData{Contacts: append([]string(nil), s.contacts...), LastMessages: last}
}

func (s *Session) saveContacts(ctx context.Context, data ContactsData) {
	if err := s.cache.SaveContacts(ctx, s.creds.WABAID, data); err != nil {
		log.Warn().Err(err).Msg("save contacts cache")
	}
}

func removeMessage(msgs []domain.Message, id string) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.MessageID != id {
			out = append(out, m)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
