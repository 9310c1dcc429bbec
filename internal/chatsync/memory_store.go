package chatsync

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process. SaveFile and LoadFile let a CLI keep
// its cache between runs.
type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := s.c.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.c.Set(key, append([]byte(nil), value...), cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for key := range s.c.Items() {
		if strings.HasPrefix(key, prefix) {
			s.c.Delete(key)
		}
	}
	return nil
}

// SaveFile writes all entries to path.
func (s *MemoryStore) SaveFile(path string) error {
	return s.c.SaveFile(path)
}

// LoadFile merges entries from path. A missing file is not an error.
func (s *MemoryStore) LoadFile(path string) error {
	err := s.c.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
