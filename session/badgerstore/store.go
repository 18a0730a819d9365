// Package badgerstore persists the session tokens in an embedded BadgerDB so a
// console restart keeps the user signed in.
package badgerstore

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/session"
)

const keyPrefix = "session:"

var _ session.Storage = (*Store)(nil)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return OpenWithOptions(opts)
}

// OpenInMemory is used by tests and the ephemeral console mode.
func OpenInMemory() (*Store, error) {
	return OpenWithOptions(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func OpenWithOptions(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "[badgerstore.Open] opening badger")
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[Store.Get] reading %s", key)
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	return errors.Wrapf(err, "[Store.Set] writing %s", key)
}

// Delete removes all keys in one transaction. Missing keys are ignored.
func (s *Store) Delete(keys ...string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(keyPrefix + key)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "[Store.Delete]")
}

func (s *Store) Close() error {
	return s.db.Close()
}
