package chatsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"waba-admin/internal/domain"
	"waba-admin/internal/metrics"
)

// CacheTTL is how long a cached contact list or conversation stays usable.
const CacheTTL = time.Hour

// Store holds raw cache entries. Expiry is decided by Cache from the envelope
// timestamp, never by the store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// envelope is the persisted form of every entry; Timestamp is epoch millis.
type envelope[T any] struct {
	Timestamp int64 `json:"timestamp"`
	Data      T     `json:"data"`
}

type ContactsData struct {
	Contacts     []string                      `json:"contacts"`
	LastMessages map[string]domain.LastMessage `json:"lastMessages"`
}

type MessagesData struct {
	Messages         []domain.Message `json:"messages"`
	HasMore          bool             `json:"hasMore"`
	LastEvaluatedKey json.RawMessage  `json:"lastEvaluatedKey"`
}

func KeyPrefix(wabaID string) string {
	return "waba_" + wabaID + "_"
}

func ContactsKey(wabaID string) string {
	return KeyPrefix(wabaID) + "contacts"
}

func MessagesKey(wabaID, contact string) string {
	return KeyPrefix(wabaID) + "messages_" + contact
}

// Cache reads and writes envelopes with a fixed TTL.
type Cache struct {
	store Store
	now   func() time.Time
	ttl   time.Duration
}

func NewCache(store Store, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, now: now, ttl: CacheTTL}
}

// load returns the entry data when present and fresh. Expired or unreadable
// entries are removed and reported as a miss.
func load[T any](ctx context.Context, c *Cache, kind, key string) (T, bool) {
	var zero T
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return zero, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return zero, false
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil || env.Timestamp == 0 {
		log.Warn().Err(err).Str("key", key).Msg("dropping unreadable cache entry")
		c.drop(ctx, key)
		return zero, false
	}
	if c.now().UnixMilli()-env.Timestamp > c.ttl.Milliseconds() {
		metrics.CacheLookups.WithLabelValues(kind, "expired").Inc()
		c.drop(ctx, key)
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return env.Data, true
}

func save[T any](ctx context.Context, c *Cache, key string, data T) error {
	raw, err := json.Marshal(envelope[T]{Timestamp: c.now().UnixMilli(), Data: data})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, raw)
}

func (c *Cache) drop(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// LoadContacts returns the cached contact list with invalid preview times removed.
func (c *Cache) LoadContacts(ctx context.Context, wabaID string) (ContactsData, bool) {
	data, ok := load[ContactsData](ctx, c, "contacts", ContactsKey(wabaID))
	if !ok {
		return ContactsData{}, false
	}
	data.LastMessages = validLastMessages(data.LastMessages, false)
	return data, true
}

// SaveContacts writes the contact list, normalizing preview times to ISO form.
func (c *Cache) SaveContacts(ctx context.Context, wabaID string, data ContactsData) error {
	data.LastMessages = validLastMessages(data.LastMessages, true)
	return save(ctx, c, ContactsKey(wabaID), data)
}

// LoadMessages returns a cached conversation with invalid timestamps removed.
func (c *Cache) LoadMessages(ctx context.Context, wabaID, contact string) (MessagesData, bool) {
	data, ok := load[MessagesData](ctx, c, "messages", MessagesKey(wabaID, contact))
	if !ok {
		return MessagesData{}, false
	}
	data.Messages = validMessages(data.Messages, false)
	return data, true
}

func (c *Cache) SaveMessages(ctx context.Context, wabaID, contact string, data MessagesData) error {
	data.Messages = validMessages(data.Messages, true)
	return save(ctx, c, MessagesKey(wabaID, contact), data)
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Clear removes every entry of one business account.
func (c *Cache) Clear(ctx context.Context, wabaID string) error {
	return c.store.DeletePrefix(ctx, KeyPrefix(wabaID))
}

func validLastMessages(in map[string]domain.LastMessage, normalize bool) map[string]domain.LastMessage {
	out := make(map[string]domain.LastMessage, len(in))
	for contact, lm := range in {
		ts, ok := NormalizeTimestamp(lm.Time)
		if !ok {
			continue
		}
		if normalize {
			lm.Time = ts
		}
		out[contact] = lm
	}
	return out
}

func validMessages(in []domain.Message, normalize bool) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		ts, ok := NormalizeTimestamp(m.Timestamp)
		if !ok {
			continue
		}
		if normalize {
			m.Timestamp = ts
		}
		out = append(out, m)
	}
	return out
}
