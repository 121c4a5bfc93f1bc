package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mkellner/storefront-engine/cart"
)

// Memory is an in-memory cart.Repository for tests and sessions that do not
// need durability. It round-trips through JSON like the SQLite backend so
// tests exercise the same encoding path.
type Memory struct {
	mu      sync.Mutex
	payload []byte
}

var _ cart.Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

// Save stores the encoded cart state.
func (m *Memory) Save(items []cart.LineItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.payload = payload
	m.mu.Unlock()
	return nil
}

// Load returns the stored cart state, or an empty cart if nothing was saved.
func (m *Memory) Load() ([]cart.LineItem, error) {
	m.mu.Lock()
	payload := m.payload
	m.mu.Unlock()

	if payload == nil {
		return nil, nil
	}
	var items []cart.LineItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", cart.ErrCorrupt, err)
	}
	return items, nil
}

// Corrupt overwrites the stored payload with undecodable bytes. Test helper
// for exercising the corrupt-state recovery path.
func (m *Memory) Corrupt() {
	m.mu.Lock()
	m.payload = []byte("{not json")
	m.mu.Unlock()
}
