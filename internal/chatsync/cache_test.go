package chatsync

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waba-admin/internal/domain"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "waba_w1_contacts", ContactsKey("w1"))
	require.Equal(t, "waba_w1_messages_+62811", MessagesKey("w1", "+62811"))
}

func TestCache_EnvelopeShape(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(store, func() time.Time { return now })

	require.NoError(t, c.SaveContacts(context.Background(), "w1", ContactsData{
		Contacts:     []string{"a"},
		LastMessages: map[string]domain.LastMessage{"a": {Text: "hi", Time: "2025-03-01T10:00:00Z"}},
	}))

	raw, ok, err := store.Get(context.Background(), "waba_w1_contacts")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{
		"timestamp": 1740830400000,
		"data": {
			"contacts": ["a"],
			"lastMessages": {"a": {"text": "hi", "time": "2025-03-01T10:00:00.000Z"}}
		}
	}`, string(raw))
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(store, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.SaveMessages(ctx, "w1", "a", MessagesData{HasMore: true}))

	now = now.Add(CacheTTL)
	_, ok := c.LoadMessages(ctx, "w1", "a")
	require.True(t, ok, "exactly one hour old is still fresh")

	now = now.Add(time.Millisecond)
	_, ok = c.LoadMessages(ctx, "w1", "a")
	require.False(t, ok)

	_, found, err := store.Get(ctx, MessagesKey("w1", "a"))
	require.NoError(t, err)
	require.False(t, found, "expired entry is removed")
}

func TestCache_DropsCorruptEntry(t *testing.T) {
	store := NewMemoryStore()
	c := NewCache(store, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, ContactsKey("w1"), []byte("{not json")))

	_, ok := c.LoadContacts(ctx, "w1")
	require.False(t, ok)
	_, found, _ := store.Get(ctx, ContactsKey("w1"))
	require.False(t, found)
}

func TestCache_FiltersInvalidTimestamps(t *testing.T) {
	store := NewMemoryStore()
	c := NewCache(store, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, MessagesKey("w1", "a"), []byte(`{
		"timestamp": `+strconv.FormatInt(time.Now().UnixMilli(), 10)+`,
		"data": {"messages": [
			{"message_id": "1", "timestamp": "garbage"},
			{"message_id": "2", "timestamp": "2025-03-01T10:00:00.000Z"}
		], "hasMore": false}
	}`)))

	data, ok := c.LoadMessages(ctx, "w1", "a")
	require.True(t, ok)
	require.Len(t, data.Messages, 1)
	require.Equal(t, "2", data.Messages[0].MessageID)
}

func TestCache_ClearOnlyTouchesAccount(t *testing.T) {
	store := NewMemoryStore()
	c := NewCache(store, nil)
	ctx := context.Background()
	require.NoError(t, c.SaveContacts(ctx, "w1", ContactsData{}))
	require.NoError(t, c.SaveMessages(ctx, "w1", "a", MessagesData{}))
	require.NoError(t, c.SaveContacts(ctx, "w2", ContactsData{}))

	require.NoError(t, c.Clear(ctx, "w1"))

	_, ok := c.LoadContacts(ctx, "w1")
	require.False(t, ok)
	_, ok = c.LoadMessages(ctx, "w1", "a")
	require.False(t, ok)
	_, ok = c.LoadContacts(ctx, "w2")
	require.True(t, ok)
}
