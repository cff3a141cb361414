// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversation

// State is the load state of the active conversation's messages.
type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unloaded"
	}
}

// SendingStatus tracks the send in flight, if any.
type SendingStatus string

const (
	SendingIdle       SendingStatus = "idle"
	SendingEncrypting SendingStatus = "encrypting"
	SendingSubmitting SendingStatus = "submitting"
)
