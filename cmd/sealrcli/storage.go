// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/luxfi/sealr/config"
	"github.com/luxfi/sealr/storage"
	"github.com/luxfi/sealr/storage/badgerdb"
	"github.com/luxfi/sealr/storage/natskv"
	"github.com/luxfi/sealr/storage/pgstore"
)

// openStorage opens the configured backend. The returned func releases it.
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	switch cfg.StorageBackend {
	case config.BadgerBackend:
		store, err := badgerdb.Open(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.NATSBackend:
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.NATSURL, err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		store, err := natskv.Open(ctx, js, cfg.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, func() { _ = nc.Drain() }, nil
	case config.PostgresBackend:
		store, pool, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}
