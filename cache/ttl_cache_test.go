// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheSingleKey(t *testing.T) {
	tests := []struct {
		name          string
		advance       time.Duration
		invalidate    bool
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			advance:       4 * time.Second,
			expectedCount: 1,
		},
		{
			name:          "invalidate, fetch",
			invalidate:    true,
			expectedCount: 2,
		},
		{
			name:          "ttl expired, fetch",
			advance:       5 * time.Second,
			expectedCount: 3,
		},
	}

	now := time.Unix(1_700_000_000, 0)
	cache := NewTTLCache[string, int](5 * time.Second)
	cache.now = func() time.Time { return now }
	fetchCount := 0
	fetchFunc := func(string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			now = now.Add(tt.advance)
			val, err := cache.Get("0xabc", fetchFunc, tt.invalidate)
			require.NoError(err)
			require.Equal(42, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLCacheErrorNotCached(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	errFetch := errors.New("fetch failed")
	calls := 0
	_, err := cache.Get("k", func(string) (int, error) {
		calls++
		return 0, errFetch
	}, false)
	require.ErrorIs(err, errFetch)

	val, err := cache.Get("k", func(string) (int, error) {
		calls++
		return 7, nil
	}, false)
	require.NoError(err)
	require.Equal(7, val)
	require.Equal(2, calls)
}

func TestTTLCacheSingleFlight(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	var fetchCount atomic.Int32
	release := make(chan struct{})
	fetchFunc := func(string) (int, error) {
		fetchCount.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get("k", fetchFunc, false)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(int32(1), fetchCount.Load())
}

func TestTTLCacheSweepsExpired(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	cache := NewTTLCache[string, int](time.Minute)
	cache.now = func() time.Time { return now }
	fetch := func(string) (int, error) { return 1, nil }

	for _, k := range []string{"a", "b"} {
		_, err := cache.Get(k, fetch, false)
		require.NoError(err)
	}
	now = now.Add(time.Minute)
	_, err := cache.Get("c", fetch, false)
	require.NoError(err)

	cache.lock.RLock()
	defer cache.lock.RUnlock()
	require.Len(cache.entries, 1)
	require.Contains(cache.entries, "c")
}
