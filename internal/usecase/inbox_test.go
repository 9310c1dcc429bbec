package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waba-admin/internal/domain"
	"waba-admin/internal/integrations/sendrelay"
	"waba-admin/internal/repository"
	"waba-admin/internal/store"
)

type mockMessages struct {
	contacts    []string
	contactsErr error
	last        map[string]*domain.Message
	lastErr     error
	page        repository.MessagePage
	pageErr     error
	convo       []domain.Message
	convoErr    error
	saveErr     error

	fetchContact string
	fetchLimit   int
	fetchKey     json.RawMessage
	convoBefore  string
	saved        *domain.MessageRecord
}

func (m *mockMessages) FetchMessages(_ context.Context, contact, _ string, limit int, startKey json.RawMessage) (repository.MessagePage, error) {
	m.fetchContact, m.fetchLimit, m.fetchKey = contact, limit, startKey
	return m.page, m.pageErr
}

func (m *mockMessages) LastMessage(_ context.Context, contact, _ string) (*domain.Message, error) {
	return m.last[contact], m.lastErr
}

func (m *mockMessages) FetchUniqueContacts(_ context.Context, _ string) ([]string, error) {
	return m.contacts, m.contactsErr
}

func (m *mockMessages) FetchConversation(_ context.Context, _, _ string, limit int, before string) ([]domain.Message, error) {
	m.fetchLimit, m.convoBefore = limit, before
	return m.convo, m.convoErr
}

func (m *mockMessages) SaveMessage(_ context.Context, rec domain.MessageRecord) error {
	m.saved = &rec
	return m.saveErr
}

type mockRelay struct {
	id  string
	err error
	req sendrelay.Request
}

func (m *mockRelay) Send(_ context.Context, req sendrelay.Request) (string, error) {
	m.req = req
	return m.id, m.err
}

type mockSender struct {
	id     string
	err    error
	called bool
	token  string
}

func (m *mockSender) SendText(_ context.Context, _, accessToken, _, _ string) (string, error) {
	m.called, m.token = true, accessToken
	return m.id, m.err
}

type mockOwners struct {
	owner string
	err   error
}

func (m *mockOwners) UserIDByPhoneNumberID(_ context.Context, _ string) (string, error) {
	return m.owner, m.err
}

type upstreamErr struct{ msg string }

func (e *upstreamErr) Error() string           { return "upstream: " + e.msg }
func (e *upstreamErr) UpstreamMessage() string { return e.msg }

func newInbox(t *testing.T, m *mockMessages, r *mockRelay, s *mockSender, o *mockOwners) *InboxService {
	t.Helper()
	svc, err := NewInboxService(m, r, s, o)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
	return ucErr
}

func TestNewInboxService_ValidatesDependencies(t *testing.T) {
	_, err := NewInboxService(nil, &mockRelay{}, &mockSender{}, &mockOwners{})
	require.Error(t, err)
	_, err = NewInboxService(&mockMessages{}, nil, &mockSender{}, &mockOwners{})
	require.Error(t, err)
	_, err = NewInboxService(&mockMessages{}, &mockRelay{}, nil, &mockOwners{})
	require.Error(t, err)
	_, err = NewInboxService(&mockMessages{}, &mockRelay{}, &mockSender{}, nil)
	require.Error(t, err)
}

func TestGetContacts_BuildsPreviews(t *testing.T) {
	long := strings.Repeat("x", 40)
	m := &mockMessages{
		contacts: []string{"+62811", "+62822"},
		last: map[string]*domain.Message{
			"+62811": {Message: long, Timestamp: "2025-03-01T09:00:00.000Z"},
		},
	}
	svc := newInbox(t, m, &mockRelay{}, &mockSender{}, &mockOwners{})

	out, err := svc.GetContacts(context.Background(), ContactsInput{PhoneNumberID: "123"})
	require.NoError(t, err)
	require.Equal(t, []string{"+62811", "+62822"}, out.Contacts)
	require.Equal(t, domain.LastMessage{Text: strings.Repeat("x", 30) + "...", Time: "2025-03-01T09:00:00.000Z"}, out.LastMessages["+62811"])
	require.NotContains(t, out.LastMessages, "+62822")
}

func TestGetContacts_Errors(t *testing.T) {
	svc := newInbox(t, &mockMessages{}, &mockRelay{}, &mockSender{}, &mockOwners{})
	_, err := svc.GetContacts(context.Background(), ContactsInput{})
	ucErr := requireCode(t, err, ErrorInvalidInput)
	require.Contains(t, ucErr.Message, "phoneNumberId")

	svc = newInbox(t, &mockMessages{contactsErr: errors.New("throttled")}, &mockRelay{}, &mockSender{}, &mockOwners{})
	_, err = svc.GetContacts(context.Background(), ContactsInput{PhoneNumberID: "123"})
	ucErr = requireCode(t, err, ErrorUpstream)
	require.Equal(t, "throttled", ucErr.Message)
}

func TestGetMessages_DefaultsAndCursor(t *testing.T) {
	m := &mockMessages{page: repository.MessagePage{LastEvaluatedKey: json.RawMessage(`{"message_id":"m1"}`)}}
	svc := newInbox(t, m, &mockRelay{}, &mockSender{}, &mockOwners{})

	out, err := svc.GetMessages(context.Background(), MessagesInput{
		UserID: "+62811", PhoneNumberID: "123", LastEvaluatedKey: json.RawMessage(`{"message_id":"m9"}`),
	})
	require.NoError(t, err)
	require.Equal(t, 20, m.fetchLimit)
	require.JSONEq(t, `{"message_id":"m9"}`, string(m.fetchKey))
	require.NotNil(t, out.Messages)
	require.JSONEq(t, `{"message_id":"m1"}`, string(out.LastEvaluatedKey))
}

func TestGetMessages_Validation(t *testing.T) {
	svc := newInbox(t, &mockMessages{}, &mockRelay{}, &mockSender{}, &mockOwners{})
	_, err := svc.GetMessages(context.Background(), MessagesInput{PhoneNumberID: "123"})
	requireCode(t, err, ErrorInvalidInput)
	_, err = svc.GetMessages(context.Background(), MessagesInput{UserID: "a", PhoneNumberID: "123", Limit: 500})
	requireCode(t, err, ErrorInvalidInput)
}

func TestGetMessages_InvalidCursor(t *testing.T) {
	m := &mockMessages{}
	svc := newInbox(t, m, &mockRelay{}, &mockSender{}, &mockOwners{})

	_, err := svc.GetMessages(context.Background(), MessagesInput{
		UserID: "+62811", PhoneNumberID: "123", LastEvaluatedKey: json.RawMessage(`"not-a-key"`),
	})
	ucErr := requireCode(t, err, ErrorInvalidInput)
	require.Equal(t, "invalid_cursor", ucErr.Reason)
	require.Empty(t, m.fetchContact)

	m.pageErr = fmt.Errorf("repository: FetchMessages cursor: %w", repository.ErrInvalidCursor)
	_, err = svc.GetMessages(context.Background(), MessagesInput{UserID: "+62811", PhoneNumberID: "123"})
	requireCode(t, err, ErrorInvalidInput)
}

func TestSendMessage(t *testing.T) {
	r := &mockRelay{id: "wamid.1"}
	svc := newInbox(t, &mockMessages{}, r, &mockSender{}, &mockOwners{})
	in := SendInput{PhoneNumberID: "123", To: "+6281234567890", Text: "Halo", AccessToken: "tok"}

	id, err := svc.SendMessage(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "wamid.1", id)
	require.Equal(t, sendrelay.Request{PhoneNumberID: "123", To: "+6281234567890", Text: "Halo", AccessToken: "tok"}, r.req)
}

func TestSendMessage_ForwardsUpstreamMessage(t *testing.T) {
	r := &mockRelay{err: &upstreamErr{msg: "recipient not on WhatsApp"}}
	svc := newInbox(t, &mockMessages{}, r, &mockSender{}, &mockOwners{})

	_, err := svc.SendMessage(context.Background(), SendInput{PhoneNumberID: "123", To: "+62", Text: "Halo", AccessToken: "t"})
	ucErr := requireCode(t, err, ErrorUpstream)
	require.Equal(t, "recipient not on WhatsApp", ucErr.Message)

	_, err = svc.SendMessage(context.Background(), SendInput{PhoneNumberID: "123", To: "+62", Text: "Halo"})
	requireCode(t, err, ErrorInvalidInput)
}

func TestListConversation(t *testing.T) {
	m := &mockMessages{convo: []domain.Message{{MessageID: "m1"}}}
	svc := newInbox(t, m, &mockRelay{}, &mockSender{}, &mockOwners{})

	msgs, err := svc.ListConversation(context.Background(), ConversationInput{
		PhoneNumberID: "123", Contact: "+62811", Limit: 5, Before: "2025-03-01T10:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 5, m.fetchLimit)
	require.Equal(t, "2025-03-01T10:00:00.000Z", m.convoBefore)

	_, err = svc.ListConversation(context.Background(), ConversationInput{PhoneNumberID: "123", Contact: "+62811", Before: "soon"})
	requireCode(t, err, ErrorInvalidInput)
}

func TestSendWhatsApp_StoresSentMessage(t *testing.T) {
	m := &mockMessages{}
	s := &mockSender{id: "wamid.9"}
	svc := newInbox(t, m, &mockRelay{}, s, &mockOwners{owner: "user-1"})

	id, err := svc.SendWhatsApp(context.Background(), WhatsAppSendInput{PhoneNumberID: "123", To: "+62811", Text: "Halo", AccessToken: "tok"})
	require.NoError(t, err)
	require.Equal(t, "wamid.9", id)
	require.Equal(t, "tok", s.token)
	require.NotNil(t, m.saved)
	require.Equal(t, "+62811", m.saved.UserID)
	require.Equal(t, "user-1", m.saved.OwnerID)
	require.Equal(t, domain.MessageTypeOutgoing, m.saved.MessageType)
	require.Equal(t, "2025-03-01T10:00:00.000Z", m.saved.Timestamp)
}

func TestSendWhatsApp_Errors(t *testing.T) {
	in := WhatsAppSendInput{PhoneNumberID: "123", To: "+62811", Text: "Halo", AccessToken: "tok"}

	noToken := in
	noToken.AccessToken = ""
	svc := newInbox(t, &mockMessages{}, &mockRelay{}, &mockSender{}, &mockOwners{})
	_, err := svc.SendWhatsApp(context.Background(), noToken)
	requireCode(t, err, ErrorUnauthorized)

	s := &mockSender{}
	svc = newInbox(t, &mockMessages{}, &mockRelay{}, s, &mockOwners{err: store.ErrNotFound})
	_, err = svc.SendWhatsApp(context.Background(), in)
	requireCode(t, err, ErrorNotFound)
	require.False(t, s.called)

	svc = newInbox(t, &mockMessages{}, &mockRelay{}, &mockSender{err: &upstreamErr{msg: "token expired"}}, &mockOwners{owner: "u"})
	_, err = svc.SendWhatsApp(context.Background(), in)
	ucErr := requireCode(t, err, ErrorUpstream)
	require.Equal(t, "token expired", ucErr.Message)

	svc = newInbox(t, &mockMessages{saveErr: errors.New("conditional check failed")}, &mockRelay{}, &mockSender{id: "x"}, &mockOwners{owner: "u"})
	_, err = svc.SendWhatsApp(context.Background(), in)
	requireCode(t, err, ErrorUpstream)
}
