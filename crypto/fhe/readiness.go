// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/sealr/utils"
)

const (
	DefaultReadyTimeout  = 10 * time.Second
	DefaultReadyInterval = 200 * time.Millisecond
)

// Status is the lifecycle state of a co-processor instance.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Instance exposes a co-processor client that may still be initializing.
type Instance interface {
	// Client returns the client and StatusReady once usable. Before that it
	// returns a nil client, the current status, and the initialization error
	// if there is one.
	Client() (Client, Status, error)
}

// Ready wraps an already initialized client.
func Ready(client Client) Instance {
	return readyInstance{client: client}
}

type readyInstance struct {
	client Client
}

func (r readyInstance) Client() (Client, Status, error) {
	return r.client, StatusReady, nil
}

// NotReadyError reports the last observed status of an instance that did not
// become ready in time.
type NotReadyError struct {
	Status Status
	Err    error
}

func (e *NotReadyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", ErrNotReady, e.Err)
	}
	return fmt.Sprintf("%s (status=%s)", ErrNotReady, e.Status)
}

func (e *NotReadyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotReady, e.Err}
	}
	return []error{ErrNotReady}
}

// WaitReady polls instance every interval until it is ready or timeout
// elapses. A ready instance returns without waiting.
func WaitReady(ctx context.Context, instance Instance, timeout, interval time.Duration) (Client, error) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if interval <= 0 {
		interval = DefaultReadyInterval
	}

	var (
		client  Client
		status  Status
		lastErr error
	)
	err := utils.PollUntil(ctx, func() error {
		var c Client
		c, status, lastErr = instance.Client()
		if c == nil || status != StatusReady {
			return ErrNotReady
		}
		client = c
		return nil
	}, interval, timeout)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, &NotReadyError{Status: status, Err: lastErr}
	}
	return client, nil
}
