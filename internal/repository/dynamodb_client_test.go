package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"waba-admin/internal/domain"
)

type fakeDynamo struct {
	putErr     error
	queryOuts  []*dynamodb.QueryOutput
	queryErr   error
	deleteErr  error
	queryCalls int

	lastPutInput    *dynamodb.PutItemInput
	lastQueryIn     *dynamodb.QueryInput
	queryInputs     []*dynamodb.QueryInput
	lastDeleteInput *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	cp := *in
	f.queryInputs = append(f.queryInputs, &cp)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryCalls >= len(f.queryOuts) {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.queryOuts[f.queryCalls]
	f.queryCalls++
	return out, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func makeItem(id, contact, text, msgType, ts string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"message_id":      &types.AttributeValueMemberS{Value: id},
		"user_id":         &types.AttributeValueMemberS{Value: contact},
		"phone_number_id": &types.AttributeValueMemberS{Value: "123"},
		"message":         &types.AttributeValueMemberS{Value: text},
		"message_type":    &types.AttributeValueMemberS{Value: msgType},
		"timestamp":       &types.AttributeValueMemberS{Value: ts},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchMessages_HappyPath(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeItem("m2", "+62811", "balasan", domain.MessageTypeOutgoing, "2025-03-01T09:00:00.000Z"),
			makeItem("m1", "+62811", "halo", domain.MessageTypeIncoming, "2025-03-01T08:00:00.000Z"),
		},
		LastEvaluatedKey: map[string]types.AttributeValue{
			"user_id":    &types.AttributeValueMemberS{Value: "+62811"},
			"message_id": &types.AttributeValueMemberS{Value: "m1"},
		},
	}}}
	c := mustNewClient(t, db)

	page, err := c.FetchMessages(context.Background(), "+62811", "123", 20, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	require.Equal(t, "m1", page.Messages[0].MessageID)
	require.Equal(t, domain.DirectionIn, page.Messages[0].Direction)
	require.Equal(t, domain.DirectionOut, page.Messages[1].Direction)
	require.Equal(t, "+62811", page.Messages[1].Contact)
	require.JSONEq(t, `{"user_id":"+62811","message_id":"m1"}`, string(page.LastEvaluatedKey))
}

func TestFetchMessages_QueryShape(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchMessages(context.Background(), "+62811", "123", 0, nil)
	require.NoError(t, err)
	require.Equal(t, "user_id = :userId", *db.lastQueryIn.KeyConditionExpression)
	require.Equal(t, "phone_number_id = :phoneNumberId", *db.lastQueryIn.FilterExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(20), *db.lastQueryIn.Limit)
	require.Nil(t, db.lastQueryIn.ExclusiveStartKey)
}

func TestFetchMessages_ForwardsCursor(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchMessages(context.Background(), "+62811", "123", 20, json.RawMessage(`{"user_id":"+62811","seq":42}`))
	require.NoError(t, err)
	key := db.lastQueryIn.ExclusiveStartKey
	require.Equal(t, "+62811", key["user_id"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "42", key["seq"].(*types.AttributeValueMemberN).Value)
}

func TestFetchMessages_NullCursorIsIgnored(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchMessages(context.Background(), "+62811", "123", 20, json.RawMessage(`null`))
	require.NoError(t, err)
	require.Nil(t, db.lastQueryIn.ExclusiveStartKey)
}

func TestFetchMessages_BadCursor(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchMessages(context.Background(), "+62811", "123", 20, json.RawMessage(`{"user_id":true}`))
	require.ErrorIs(t, err, ErrInvalidCursor)
	require.Zero(t, db.queryCalls)
}

func TestValidateCursor(t *testing.T) {
	require.NoError(t, ValidateCursor(nil))
	require.NoError(t, ValidateCursor(json.RawMessage(`null`)))
	require.NoError(t, ValidateCursor(json.RawMessage(`{"user_id":"+62811","timestamp":"2025-03-01T10:00:00.000Z"}`)))
	require.ErrorIs(t, ValidateCursor(json.RawMessage(`"abc"`)), ErrInvalidCursor)
	require.ErrorIs(t, ValidateCursor(json.RawMessage(`{"user_id":`)), ErrInvalidCursor)
	require.ErrorIs(t, ValidateCursor(json.RawMessage(`{"user_id":["x"]}`)), ErrInvalidCursor)
}

func TestFetchMessages_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.FetchMessages(context.Background(), "+62811", "123", 20, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "FetchMessages")
}

func TestFetchMessages_MalformedItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"message_id": &types.AttributeValueMemberS{Value: "m1"},
		"user_id":    &types.AttributeValueMemberS{Value: "+62811"},
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}}
	c := mustNewClient(t, db)
	_, err := c.FetchMessages(context.Background(), "+62811", "123", 20, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timestamp")
}

func TestLastMessage(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeItem("m9", "+62811", "terakhir", domain.MessageTypeIncoming, "2025-03-01T09:00:00.000Z"),
		},
	}}}
	c := mustNewClient(t, db)

	msg, err := c.LastMessage(context.Background(), "+62811", "123")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "terakhir", msg.Message)
	require.Equal(t, int32(1), *db.lastQueryIn.Limit)
}

func TestLastMessage_Empty(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	msg, err := c.LastMessage(context.Background(), "+62811", "123")
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestFetchUniqueContacts_DedupesAcrossPages(t *testing.T) {
	row := func(id string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: id}}
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{row("a"), row("b"), row("a")},
			LastEvaluatedKey: map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: "a"}},
		},
		{Items: []map[string]types.AttributeValue{row("c"), row("b")}},
	}}
	c := mustNewClient(t, db)

	contacts, err := c.FetchUniqueContacts(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, contacts)
	require.Len(t, db.queryInputs, 2)
	require.Equal(t, "PhoneNumberIndex", *db.queryInputs[0].IndexName)
	require.Equal(t, "user_id", *db.queryInputs[0].ProjectionExpression)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestFetchUniqueContacts_QueryError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("boom")})
	_, err := c.FetchUniqueContacts(context.Background(), "123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FetchUniqueContacts")
}

func TestFetchConversation_Before(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchConversation(context.Background(), "123", "+62811", 5, "2025-03-01T00:00:00.000Z")
	require.NoError(t, err)
	require.Equal(t, "phone_number_id = :pid AND #ts < :before", *db.lastQueryIn.KeyConditionExpression)
	require.Equal(t, "timestamp", db.lastQueryIn.ExpressionAttributeNames["#ts"])
	require.Equal(t, int32(5), *db.lastQueryIn.Limit)
}

func TestFetchConversation_WithoutBefore(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.FetchConversation(context.Background(), "123", "+62811", 0, "")
	require.NoError(t, err)
	require.Equal(t, "phone_number_id = :pid", *db.lastQueryIn.KeyConditionExpression)
	require.Nil(t, db.lastQueryIn.ExpressionAttributeNames)
}

func TestSaveMessage_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	rec := NewOutgoingRecord("+62811", "123", "wamid.1", "Halo", c.now())
	require.NoError(t, c.SaveMessage(context.Background(), rec))

	item := db.lastPutInput.Item
	require.Equal(t, "OUTGOING", item["message_type"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "out", item["direction"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2025-03-01T10:00:00.000Z", item["timestamp"].(*types.AttributeValueMemberS).Value)
	require.NotEmpty(t, item["ttl"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "attribute_not_exists(user_id) AND attribute_not_exists(message_id)", *db.lastPutInput.ConditionExpression)
}

func TestSaveMessage_FillsDefaults(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.SaveMessage(context.Background(), domain.MessageRecord{UserID: "+62811", MessageID: "m1", MessageType: domain.MessageTypeIncoming})
	require.NoError(t, err)
	item := db.lastPutInput.Item
	require.Equal(t, "2025-03-01T10:00:00.000Z", item["timestamp"].(*types.AttributeValueMemberS).Value)
	_, hasDirection := item["direction"]
	require.False(t, hasDirection)
}

func TestSaveMessage_MissingKeys(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	err := c.SaveMessage(context.Background(), domain.MessageRecord{MessageID: "m1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestSaveMessage_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")})
	err := c.SaveMessage(context.Background(), domain.MessageRecord{UserID: "a", MessageID: "m1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SaveMessage")
}

func TestEncodeKey_Empty(t *testing.T) {
	raw, err := encodeKey(nil)
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
