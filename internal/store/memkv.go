package store

import (
	"context"
	"sync"
)

// MemoryKV is an in-memory KVStore, used by unit tests and redis-less
// development runs. A single mutex serializes transactions, so Update never
// observes a conflict here.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyMiss
	}
	return v, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Update(ctx context.Context, keys []string, fn func(tx KVTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{kv: m, writes: map[string]string{}}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.writes {
		m.data[k] = v
	}
	return nil
}

type memoryTx struct {
	kv     *MemoryKV
	writes map[string]string
}

func (t *memoryTx) Get(key string) (string, error) {
	if v, ok := t.writes[key]; ok {
		return v, nil
	}
	v, ok := t.kv.data[key]
	if !ok {
		return "", ErrKeyMiss
	}
	return v, nil
}

func (t *memoryTx) Set(key, value string) {
	t.writes[key] = value
}
