// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package badgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/luxfi/sealr/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store keeps values in a badger database under "<store>/<key>".
type Store struct {
	db *badger.DB
}

// Open opens the database in dir. An empty dir opens an in-memory database.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return New(db), nil
}

func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(_ context.Context, store, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(store, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	return value, err
}

func (s *Store) Put(_ context.Context, store, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(store, key), value)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dbKey(store, key string) []byte {
	return []byte(store + "/" + key)
}
