// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage defines the durable key-value store behind the client
// caches, with in-memory and no-op implementations. Durable backends live in
// the sub-packages.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("not found")

// Storage is a namespaced key-value store. A store groups related keys, such
// as one cache's partitions.
type Storage interface {
	Get(ctx context.Context, store, key string) ([]byte, error)
	Put(ctx context.Context, store, key string, value []byte) error
}

var (
	_ Storage = (*Memory)(nil)
	_ Storage = Noop{}
)

// Memory keeps values in process memory.
type Memory struct {
	lock sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, store, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok := m.data[store][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, store, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	s, ok := m.data[store]
	if !ok {
		s = make(map[string][]byte)
		m.data[store] = s
	}
	s[key] = append([]byte(nil), value...)
	return nil
}

// Noop stores nothing. Callers degrade to memory-only caching.
type Noop struct{}

func (Noop) Get(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotFound
}

func (Noop) Put(context.Context, string, string, []byte) error {
	return nil
}
