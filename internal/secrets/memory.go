package secrets

import (
	"fmt"
	"sync"

	"github.com/benaskins/keygate/internal/vault"
)

// MemoryStore is an in-memory implementation of Store for testing and
// for platforms without a system keychain.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewMemoryStore creates a new in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ref vault.Ref, key []byte) error {
	cp := make([]byte, len(key))
	copy(cp, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[ref.String()] = cp
	return nil
}

func (s *MemoryStore) Get(ref vault.Ref) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return cp, nil
}

func (s *MemoryStore) Delete(ref vault.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[ref.String()]; ok {
		for i := range key {
			key[i] = 0
		}
	}
	delete(s.keys, ref.String())
	return nil
}

func (s *MemoryStore) WipeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, key := range s.keys {
		for i := range key {
			key[i] = 0
		}
		delete(s.keys, k)
	}
	return nil
}

// Len reports how many keys are cached. Test hook.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
