// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides small generic caches with single-flight fetching.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type expiring[V any] struct {
	value     V
	expiresAt time.Time
}

func (e expiring[V]) live(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// TTLCache serves a fetched value until it is older than the TTL. It bounds
// how often a slow source is re-read. Expired entries are swept on insert.
type TTLCache[K comparable, V any] struct {
	lock    sync.RWMutex
	entries map[K]expiring[V]
	ttl     time.Duration
	now     func() time.Time

	fetches singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]expiring[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key if it is younger than the TTL,
// otherwise it calls fetchFunc. Concurrent fetches of one key share a single
// call. If invalidate is true the entry is dropped before fetching, so no
// caller can observe the stale value. Failed fetches are not cached.
func (c *TTLCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.Invalidate(key)
	} else if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.fetches.Do(keyToString(key), func() (any, error) {
		v, err := fetchFunc(key)
		if err == nil {
			c.store(key, v)
		}
		return v, err
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops key so the next Get fetches.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.entries, key)
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.lock.Lock()
	defer c.lock.Unlock()
	clear(c.entries)
}

func (c *TTLCache[K, V]) lookup(key K) (V, bool) {
	c.lock.RLock()
	e, ok := c.entries[key]
	c.lock.RUnlock()
	if ok && e.live(c.now()) {
		return e.value, true
	}
	var zero V
	return zero, false
}

func (c *TTLCache[K, V]) store(key K, v V) {
	now := c.now()
	c.lock.Lock()
	defer c.lock.Unlock()
	for k, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = expiring[V]{value: v, expiresAt: now.Add(c.ttl)}
}

// keyToString names a key for single-flight grouping.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T:%v", key, key)
}
