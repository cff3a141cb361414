// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

var errNotYet = errors.New("not yet")

func TestWithRetriesTimeout(t *testing.T) {
	t.Run("NotEnoughTime", func(t *testing.T) {
		retryable := newMockRetryableFn(100)
		err := WithRetriesTimeout(
			context.Background(),
			log.NewNoOpLogger(),
			func() error {
				_, err := retryable.Run()
				return err
			},
			300*time.Millisecond,
			"test",
		)
		require.Error(t, err)
	})
	t.Run("EnoughTime", func(t *testing.T) {
		retryable := newMockRetryableFn(2)
		var res bool
		err := WithRetriesTimeout(
			context.Background(),
			log.NewNoOpLogger(),
			func() (err error) {
				res, err = retryable.Run()
				return err
			},
			5*time.Second,
			"test",
		)
		require.NoError(t, err)
		require.True(t, res)
	})
	t.Run("Permanent", func(t *testing.T) {
		retryable := newMockRetryableFn(100)
		err := WithRetriesTimeout(
			context.Background(),
			log.NewNoOpLogger(),
			func() error {
				_, err := retryable.Run()
				return backoff.Permanent(err)
			},
			5*time.Second,
			"test",
		)
		require.ErrorIs(t, err, errNotYet)
		require.Equal(t, uint64(1), retryable.counter)
	})
}

func TestPollUntil(t *testing.T) {
	t.Run("SucceedsAfterPolls", func(t *testing.T) {
		require := require.New(t)

		retryable := newMockRetryableFn(3)
		err := PollUntil(
			context.Background(),
			func() error {
				_, err := retryable.Run()
				return err
			},
			10*time.Millisecond,
			time.Second,
		)
		require.NoError(err)
		require.Equal(uint64(3), retryable.counter)
	})
	t.Run("ReturnsLastError", func(t *testing.T) {
		require := require.New(t)

		start := time.Now()
		err := PollUntil(
			context.Background(),
			func() error { return errNotYet },
			10*time.Millisecond,
			100*time.Millisecond,
		)
		require.ErrorIs(err, errNotYet)
		require.Less(time.Since(start), time.Second)
	})
}

type mockRetryableFn struct {
	counter uint64
	trigger uint64
}

func newMockRetryableFn(trigger uint64) *mockRetryableFn {
	return &mockRetryableFn{
		trigger: trigger,
	}
}

func (m *mockRetryableFn) Run() (bool, error) {
	if m.counter >= m.trigger {
		return true, nil
	}
	m.counter++
	return false, errNotYet
}
