// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the value for key on a miss.
type FetchFunc[K comparable, V any] func(key K) (V, error)

type fifoEntry[K comparable, V any] struct {
	key   K
	value V
}

// FIFOCache holds at most capacity values and evicts in insertion order.
// Replacing a value keeps its place. Misses are loaded once even under
// concurrent Gets.
type FIFOCache[K comparable, V any] struct {
	lock     sync.RWMutex
	index    map[K]*list.Element
	order    *list.List // front is next to evict
	capacity int

	loads singleflight.Group
}

func NewFIFOCache[K comparable, V any](capacity int) *FIFOCache[K, V] {
	return &FIFOCache[K, V]{
		index:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		capacity: max(capacity, 1),
	}
}

// Get returns the value for key, loading it with fetchFunc on a miss. A
// failed load caches nothing.
func (c *FIFOCache[K, V]) Get(key K, fetchFunc FetchFunc[K, V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	v, err, _ := c.loads.Do(keyToString(key), func() (any, error) {
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		v, err := fetchFunc(key)
		if err != nil {
			return nil, err
		}
		c.insert(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the cached value for key without loading it.
func (c *FIFOCache[K, V]) Peek(key K) (V, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if e, ok := c.index[key]; ok {
		return e.Value.(*fifoEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Remove drops key. It reports whether key was present.
func (c *FIFOCache[K, V]) Remove(key K) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	e, ok := c.index[key]
	if ok {
		c.order.Remove(e)
		delete(c.index, key)
	}
	return ok
}

// Purge drops every entry.
func (c *FIFOCache[K, V]) Purge() {
	c.lock.Lock()
	defer c.lock.Unlock()
	clear(c.index)
	c.order.Init()
}

func (c *FIFOCache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.order.Len()
}

func (c *FIFOCache[K, V]) insert(key K, val V) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if e, ok := c.index[key]; ok {
		e.Value.(*fifoEntry[K, V]).value = val
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Remove(c.order.Front()).(*fifoEntry[K, V])
		delete(c.index, oldest.key)
	}
	c.index[key] = c.order.PushBack(&fifoEntry[K, V]{key: key, value: val})
}
