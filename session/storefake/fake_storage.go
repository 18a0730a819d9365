package storefake

import (
	"sync"

	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/session"
)

var _ session.Storage = (*FakeStorage)(nil)

// FakeStorage is an in-memory session.Storage. It backs the "memory" session
// store and the tests.
type FakeStorage struct {
	values map[string]string
	mutex  sync.RWMutex
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		values: make(map[string]string),
	}
}

// NewFakeStorageWith seeds the store, e.g. with values left by a previous run.
func NewFakeStorageWith(values map[string]string) *FakeStorage {
	f := NewFakeStorage()
	for k, v := range values {
		f.values[k] = v
	}
	return f
}

func (f *FakeStorage) Get(key string) (string, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	value, exists := f.values[key]
	if !exists {
		return "", apperrors.ErrNotFound
	}
	return value, nil
}

func (f *FakeStorage) Set(key, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.values[key] = value
	return nil
}

func (f *FakeStorage) Delete(keys ...string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

// Snapshot returns a copy of everything stored.
func (f *FakeStorage) Snapshot() map[string]string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}
