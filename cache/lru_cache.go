// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import "github.com/luxfi/geth/common/lru"

// LRUCache memoizes values that do not expire, evicting the least recently
// used once full.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		cache: lru.NewCache[K, V](size),
	}
}

// Get returns the cached value for key or loads it with fetchFunc. If
// invalidate is true the cached value is dropped first. Failed fetches are
// not cached.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.cache.Remove(key)
	} else if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	v, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Add stores value under key.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.cache.Add(key, value)
}

// Purge drops every entry.
func (c *LRUCache[K, V]) Purge() {
	c.cache.Purge()
}
