package storage

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStorage is process-local and does not survive a restart.
type MemoryStorage struct {
	cache *gocache.Cache
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return s, true, nil
}

func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	m.cache.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
