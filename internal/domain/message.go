package domain

// Direction tells whether a message was received from or sent to a contact.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// MessageStatus is only set on outgoing messages held by the inbox view.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
)

// Message is a single chat message as exchanged with the dashboard.
// Timestamp is an ISO-8601 string; ordering compares it lexically.
type Message struct {
	MessageID string        `json:"message_id"`
	Contact   string        `json:"contact"`
	Message   string        `json:"message"`
	Direction Direction     `json:"direction"`
	Timestamp string        `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// LastMessage is the per-contact preview shown in the contact list.
type LastMessage struct {
	Text string `json:"text"`
	Time string `json:"time"`
}

// MessageRecord is a row of the messages table.
type MessageRecord struct {
	UserID        string
	MessageID     string
	PhoneNumberID string
	Timestamp     string
	Message       string
	MessageType   string
	OwnerID       string
	CreatedAt     string
	TTL           int64
}

const (
	MessageTypeIncoming = "INCOMING"
	MessageTypeOutgoing = "OUTGOING"
)
