package objectstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var errEmulatedOutage = errors.New("emulated outage")

// Compile time check to ensure MemoryStore satisfies the Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation for testing.
// Thread-safe for concurrent reads and writes.
//
// Failures can be injected per key to exercise the upload pipeline's retry
// behavior without a real network.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	puts     map[string]int
	failures map[string]int
	failErr  map[string]error
}

// NewMemoryStore creates a new in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		puts:     make(map[string]int),
		failures: make(map[string]int),
		failErr:  make(map[string]error),
	}
}

// FailPuts makes the next n Put calls for key fail with a transient error.
func (m *MemoryStore) FailPuts(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[key] = n
}

// FailPutsWith makes every Put call for key fail with err until cleared via
// FailPuts(key, 0).
func (m *MemoryStore) FailPutsWith(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failErr[key] = err
}

// PutCount returns how many Put attempts were made for key, including failed
// ones.
func (m *MemoryStore) PutCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.puts[key]
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

// Put writes an object, honoring injected failures.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts[key]++

	if err, ok := m.failErr[key]; ok {
		return err
	}
	if n := m.failures[key]; n > 0 {
		m.failures[key] = n - 1
		return Transient(errEmulatedOutage)
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[key] = copied
	return nil
}

// Get reads an object.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Delete removes an object.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// DeletePrefix removes every object whose key starts with prefix.
func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

// List returns all keys with the given prefix, sorted.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
