package chatsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", string(got))
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, k := range []string{"waba_1_contacts", "waba_1_messages_a", "waba_10_contacts"} {
		require.NoError(t, s.Set(ctx, k, []byte("{}")))
	}
	require.NoError(t, s.DeletePrefix(ctx, KeyPrefix("1")))

	_, ok, _ := s.Get(ctx, "waba_1_contacts")
	require.False(t, ok)
	_, ok, _ = s.Get(ctx, "waba_10_contacts")
	require.True(t, ok)
}

func TestMemoryStore_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.cache")
	ctx := context.Background()

	s := NewMemoryStore()
	require.NoError(t, s.LoadFile(path), "missing file is ignored")
	require.NoError(t, s.Set(ctx, "waba_1_contacts", []byte(`{"timestamp":1}`)))
	require.NoError(t, s.SaveFile(path))

	restored := NewMemoryStore()
	require.NoError(t, restored.LoadFile(path))
	got, ok, err := restored.Get(ctx, "waba_1_contacts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"timestamp":1}`, string(got))
}
