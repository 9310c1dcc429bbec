package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"waba-admin/internal/domain"
)

const (
	phoneNumberIndex = "PhoneNumberIndex"
	defaultPageSize  = 20
	ttlDuration      = 90 * 24 * time.Hour // 90-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by the clients in
// this package. Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// MessagePage is one page of a conversation plus the opaque cursor to the next.
type MessagePage struct {
	Messages         []domain.Message
	LastEvaluatedKey json.RawMessage
}

// Client wraps the DynamoDB messages table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new messages Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// ttlValue returns a Unix timestamp 90 days after now.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// FetchMessages reads one page of a contact's conversation on a business
// number, newest first in DynamoDB and returned in chronological order.
func (c *Client) FetchMessages(ctx context.Context, contact, phoneNumberID string, limit int, startKey json.RawMessage) (MessagePage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("user_id = :userId"),
		FilterExpression:       aws.String("phone_number_id = :phoneNumberId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId":        strValue(contact),
			":phoneNumberId": strValue(phoneNumberID),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if len(startKey) > 0 {
		key, err := decodeKey(startKey)
		if err != nil {
			return MessagePage{}, fmt.Errorf("repository: FetchMessages cursor: %w", err)
		}
		in.ExclusiveStartKey = key
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return MessagePage{}, fmt.Errorf("repository: FetchMessages query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return MessagePage{}, fmt.Errorf("repository: FetchMessages unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	reverse(msgs)

	cursor, err := encodeKey(out.LastEvaluatedKey)
	if err != nil {
		return MessagePage{}, fmt.Errorf("repository: FetchMessages encode cursor: %w", err)
	}
	return MessagePage{Messages: msgs, LastEvaluatedKey: cursor}, nil
}

// LastMessage returns the newest message of a conversation, or nil when empty.
func (c *Client) LastMessage(ctx context.Context, contact, phoneNumberID string) (*domain.Message, error) {
	page, err := c.FetchMessages(ctx, contact, phoneNumberID, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(page.Messages) == 0 {
		return nil, nil
	}
	msg := page.Messages[len(page.Messages)-1]
	return &msg, nil
}

// FetchUniqueContacts lists every contact that exchanged messages with the
// business number, in first-seen order.
func (c *Client) FetchUniqueContacts(ctx context.Context, phoneNumberID string) ([]string, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(phoneNumberIndex),
		KeyConditionExpression: aws.String("phone_number_id = :phoneNumberId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phoneNumberId": strValue(phoneNumberID),
		},
		ProjectionExpression: aws.String("user_id"),
	}

	seen := make(map[string]struct{})
	contacts := make([]string, 0)
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: FetchUniqueContacts query: %w", err)
		}
		for _, item := range out.Items {
			id, err := strAttr(item, "user_id")
			if err != nil {
				return nil, fmt.Errorf("repository: FetchUniqueContacts unmarshal: %w", err)
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			contacts = append(contacts, id)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return contacts, nil
}

// FetchConversation reads messages for a contact through the phone number
// index, optionally only those strictly older than before.
func (c *Client) FetchConversation(ctx context.Context, phoneNumberID, contact string, limit int, before string) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(phoneNumberIndex),
		KeyConditionExpression: aws.String("phone_number_id = :pid"),
		FilterExpression:       aws.String("user_id = :contact"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":     strValue(phoneNumberID),
			":contact": strValue(contact),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if before != "" {
		in.KeyConditionExpression = aws.String("phone_number_id = :pid AND #ts < :before")
		in.ExpressionAttributeNames = map[string]string{"#ts": "timestamp"}
		in.ExpressionAttributeValues[":before"] = strValue(before)
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: FetchConversation query: %w", err)
	}
	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: FetchConversation unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SaveMessage persists a message record. Missing timestamps and TTLs are
// filled from the client clock.
func (c *Client) SaveMessage(ctx context.Context, rec domain.MessageRecord) error {
	if rec.UserID == "" || rec.MessageID == "" {
		return errors.New("repository: SaveMessage: user_id and message_id are required")
	}
	if rec.Timestamp == "" {
		rec.Timestamp = c.now().UTC().Format(isoMillis)
	}
	if rec.TTL == 0 {
		rec.TTL = c.ttlValue()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                messageItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(user_id) AND attribute_not_exists(message_id)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveMessage: %w", err)
	}
	return nil
}

// NewOutgoingRecord builds the record for a message the business just sent.
func NewOutgoingRecord(contact, phoneNumberID, messageID, text string, now time.Time) domain.MessageRecord {
	ts := now.UTC().Format(isoMillis)
	return domain.MessageRecord{
		UserID:        contact,
		MessageID:     messageID,
		PhoneNumberID: phoneNumberID,
		Timestamp:     ts,
		Message:       text,
		MessageType:   domain.MessageTypeOutgoing,
		CreatedAt:     ts,
		TTL:           now.Add(ttlDuration).Unix(),
	}
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	id, err := strAttr(item, "message_id")
	if err != nil {
		return domain.Message{}, err
	}
	contact, err := strAttr(item, "user_id")
	if err != nil {
		return domain.Message{}, err
	}
	ts, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.Message{}, err
	}
	text, _ := strAttr(item, "message")          // allow empty
	msgType, _ := strAttr(item, "message_type") // allow empty

	dir := domain.DirectionIn
	if msgType == domain.MessageTypeOutgoing {
		dir = domain.DirectionOut
	} else if d, _ := strAttr(item, "direction"); d == string(domain.DirectionOut) {
		dir = domain.DirectionOut
	}

	return domain.Message{
		MessageID: id,
		Contact:   contact,
		Message:   text,
		Direction: dir,
		Timestamp: ts,
	}, nil
}

func messageItem(rec domain.MessageRecord) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"user_id":         strValue(rec.UserID),
		"message_id":      strValue(rec.MessageID),
		"phone_number_id": strValue(rec.PhoneNumberID),
		"timestamp":       strValue(rec.Timestamp),
		"message":         strValue(rec.Message),
		"message_type":    strValue(rec.MessageType),
		"ttl":             numValue(rec.TTL),
	}
	if rec.MessageType == domain.MessageTypeOutgoing {
		item["direction"] = strValue(string(domain.DirectionOut))
	}
	if rec.OwnerID != "" {
		item["owner_id"] = strValue(rec.OwnerID)
	}
	if rec.CreatedAt != "" {
		item["created_at"] = strValue(rec.CreatedAt)
	}
	return item
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
