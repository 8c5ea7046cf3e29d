package statestore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is the in-process Store used for a single session. Stored
// bytes are cloned on every read and write so callers can never mutate
// state behind the store's back.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]json.RawMessage),
	}
}

// Get returns a copy of the stored document for key.
func (m *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneRaw(value), true, nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = cloneRaw(value)
	return nil
}

// Update shallow-merges partial into the stored document for key.
func (m *MemoryStore) Update(ctx context.Context, key string, partial json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged, err := mergeDocuments(m.data[key], partial)
	if err != nil {
		return err
	}
	m.data[key] = cloneRaw(merged)
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
