// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"sync"
	"sync/atomic"

	"github.com/luxfi/geth/common"
)

// MessageSent is emitted when a message is added to a conversation.
type MessageSent struct {
	MessageID      uint64
	ConversationID uint64
	From           common.Address
}

// ReactionChanged is emitted when a message's reaction is replaced.
type ReactionChanged struct {
	MessageID uint64
	By        common.Address
}

// ConversationCreated is emitted when a direct or group conversation is
// created.
type ConversationCreated struct {
	ConversationID uint64
	Type           ConversationType
}

// ConversationDeleted is emitted when a conversation is deleted.
type ConversationDeleted struct {
	ConversationID uint64
	By             common.Address
}

// DirectMessageSent is emitted by the messenger contract for direct and
// channel messages.
type DirectMessageSent struct {
	MessageID uint64
	Sender    common.Address
	Receiver  common.Address
	Channel   common.Hash
	Timestamp uint64
}

// EventHandler receives one of the event structs above.
type EventHandler func(evt any)

// EventSource delivers ledger events to registered handlers.
type EventSource interface {
	AddEventHandler(handler EventHandler) uint32
	RemoveEventHandler(id uint32) bool
}

type wrappedEventHandler struct {
	fn EventHandler
	id uint32
}

// Dispatcher is an EventSource that fans events out to its handlers in
// registration order.
type Dispatcher struct {
	lock     sync.RWMutex
	handlers []wrappedEventHandler
	nextID   atomic.Uint32
}

// AddEventHandler registers handler and returns an id usable with
// RemoveEventHandler.
func (d *Dispatcher) AddEventHandler(handler EventHandler) uint32 {
	id := d.nextID.Add(1)
	d.lock.Lock()
	d.handlers = append(d.handlers, wrappedEventHandler{fn: handler, id: id})
	d.lock.Unlock()
	return id
}

// RemoveEventHandler removes a previously registered handler. It returns
// false if id is unknown.
func (d *Dispatcher) RemoveEventHandler(id uint32) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	for i := range d.handlers {
		if d.handlers[i].id == id {
			d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch calls every handler with evt. Handlers may add or remove
// handlers while being called.
func (d *Dispatcher) Dispatch(evt any) {
	d.lock.RLock()
	handlers := make([]wrappedEventHandler, len(d.handlers))
	copy(handlers, d.handlers)
	d.lock.RUnlock()
	for _, h := range handlers {
		h.fn(evt)
	}
}
