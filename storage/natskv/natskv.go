// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package natskv stores cache records in a NATS JetStream key-value bucket,
// which lets several client processes share one decryption cache.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/luxfi/sealr/storage"
)

var _ storage.Storage = (*Store)(nil)

// KeyValue is the subset of jetstream.KeyValue used by Store.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// Store maps "<store>.<key>" onto a bucket key.
type Store struct {
	kv KeyValue
}

func New(kv KeyValue) *Store {
	return &Store{kv: kv}
}

// Open creates or updates bucket on js and returns a Store backed by it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "sealr decryption cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket %q: %w", bucket, err)
	}
	return New(kv), nil
}

func (s *Store) Get(ctx context.Context, store, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, bucketKey(store, key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (s *Store) Put(ctx context.Context, store, key string, value []byte) error {
	_, err := s.kv.Put(ctx, bucketKey(store, key), value)
	return err
}

// bucketKey replaces characters that are not valid in a bucket key.
func bucketKey(store, key string) string {
	return sanitize(store) + "." + sanitize(key)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '=', r == '/':
			return r
		default:
			return '_'
		}
	}, s)
}
