package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store implementation. It is used in tests and for
// dry runs; production deployments use the S3 store.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) CompareAndSwap(_ context.Context, key string, expected, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.data[key]
	if expected == nil {
		if exists {
			return ErrCASMismatch
		}
	} else {
		if !exists || !bytes.Equal(current, expected) {
			return ErrCASMismatch
		}
	}

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
