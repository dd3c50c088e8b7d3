package inmemstore

import (
	"context"
	"sync"

	"github.com/trezcool/practicehub/storage/authstore"
)

// Store keeps blobs in process memory; nothing survives a restart.
type Store struct {
	mutex sync.RWMutex
	table map[string][]byte
}

var _ authstore.Backend = (*Store)(nil)

func New() *Store {
	return &Store{table: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.table[key]
	if !ok {
		return nil, authstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Set(_ context.Context, key string, data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.table[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.table, key)
	return nil
}
