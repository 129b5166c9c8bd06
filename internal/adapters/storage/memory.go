package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/predictstats/internal/ports"
)

type memItem struct {
	data      []byte
	updatedAt time.Time
}

// MemoryStore es un BlobStore en memoria. Lo usan -dry-run y los tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memItem
}

var (
	_ ports.BlobStore  = (*MemoryStore)(nil)
	_ ports.BlobLister = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]memItem{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return clone(it.data), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.items[key] = memItem{data: clone(data), updatedAt: time.Now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]ports.BlobInfo, error) {
	s.mu.RLock()
	out := make([]ports.BlobInfo, 0, len(s.items))
	for k, it := range s.items {
		out = append(out, ports.BlobInfo{Key: k, Size: len(it.data), ContentType: ContentType(k), UpdatedAt: it.updatedAt})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
