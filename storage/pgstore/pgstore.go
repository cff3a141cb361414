// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxfi/sealr/storage"
)

var _ storage.Storage = (*Store)(nil)

const (
	createTableQuery = `
CREATE TABLE IF NOT EXISTS sealr_kv (
	store      TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      BYTEA       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (store, key)
)`
	getQuery = `SELECT value FROM sealr_kv WHERE store = $1 AND key = $2`
	putQuery = `
INSERT INTO sealr_kv (store, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (store, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store keeps values in the sealr_kv table.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s, err := Connect(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// Connect returns a Store on db once the schema exists.
func Connect(ctx context.Context, db DB) (*Store, error) {
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create sealr_kv: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, store, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, getQuery, store, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", store, key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, store, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, putQuery, store, key, value); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", store, key, err)
	}
	return nil
}
