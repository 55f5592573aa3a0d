package vault

import (
	"context"
	"sync"
)

// Storage is the key-value store the vault writes ciphertext records
// and its session index into. Implementations must treat values as
// opaque bytes. Every method may fail; the vault fails closed on any
// error and never lets one propagate to its callers.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage is the default in-process Storage. Suitable for tests
// and for deployments where vault records must not outlive the process.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SecureKeyStore is the optional platform keystore for exported session
// keys. When present, keys survive a process restart; when absent, a
// lost process is equivalent to a crypto-shred.
type SecureKeyStore interface {
	GetKey(ctx context.Context, name string) ([]byte, bool, error)
	SetKey(ctx context.Context, name string, key []byte) error
	DeleteKey(ctx context.Context, name string) error
}

// MemoryKeyStore is an in-process SecureKeyStore, used as the default
// injected implementation and in tests.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewMemoryKeyStore creates an empty keystore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string][]byte)}
}

func (m *MemoryKeyStore) GetKey(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out, true, nil
}

func (m *MemoryKeyStore) SetKey(_ context.Context, name string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := make([]byte, len(key))
	copy(k, key)
	m.keys[name] = k
	return nil
}

func (m *MemoryKeyStore) DeleteKey(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, name)
	return nil
}
