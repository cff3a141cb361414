// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// WithRetriesTimeout uses an exponential backoff to run the operation until it
// succeeds or timeout limit has been reached.
func WithRetriesTimeout(
	ctx context.Context,
	logger log.Logger,
	operation backoff.Operation,
	timeout time.Duration,
	name string,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(timeout),
	)
	notify := func(err error, next time.Duration) {
		logger.Debug(
			"operation failed, retrying",
			zap.String("operation", name),
			zap.Duration("next", next),
			log.Err(err),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(expBackOff, ctx), notify)
}

// PollUntil runs operation every interval until it succeeds, ctx is done, or
// timeout has elapsed. The first attempt runs immediately. The returned error
// is the last one produced by operation, or the context error if the
// operation never ran.
func PollUntil(
	ctx context.Context,
	operation backoff.Operation,
	interval time.Duration,
	timeout time.Duration,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	op := func() error {
		lastErr = operation()
		return lastErr
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}
