package graphcache

import "sync"

// MemStore keeps encoded artifacts in memory.
type MemStore struct {
	mu    sync.Mutex
	blobs map[Key][]byte
	saves int
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[Key][]byte)}
}

// Load implements Store.
func (m *MemStore) Load(key Key) (*Artifact, error) {
	m.mu.Lock()
	b, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(b)
}

// Save implements Store.
func (m *MemStore) Save(key Key, a *Artifact) error {
	b, err := Encode(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[key] = b
	m.saves++
	m.mu.Unlock()
	return nil
}

// Put stores raw bytes under key, bypassing encoding.
func (m *MemStore) Put(key Key, b []byte) {
	m.mu.Lock()
	m.blobs[key] = b
	m.mu.Unlock()
}

// Saves returns how many times Save succeeded.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
