// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
)

const eventQueueSize = 256

// HandleMessageSent applies a message-sent event to the active
// conversation. The user's own messages replace their optimistic entry;
// peer messages are appended. A message already in the list is replaced in
// place, so repeated deliveries are harmless.
func (s *Store) HandleMessageSent(ctx context.Context, evt *sealr.MessageSent) error {
	s.lock.Lock()
	if s.active == nil {
		s.lock.Unlock()
		return nil
	}
	if s.active.ID == 0 {
		if s.active.Type == sealr.DirectConversation && evt.From == s.self {
			s.active.ID = evt.ConversationID
		}
		s.lock.Unlock()
		return nil
	}
	if s.active.ID != evt.ConversationID {
		s.lock.Unlock()
		return nil
	}
	gen := s.generation
	s.lock.Unlock()

	own := evt.From == s.self
	if own && s.config.IndexDelay > 0 {
		if err := sleep(ctx, s.config.IndexDelay); err != nil {
			return err
		}
	}

	rec, err := s.ledger.GetMessage(ctx, evt.MessageID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %d", sealr.ErrMessageNotFound, evt.MessageID)
	}
	msgs, err := s.decrypt(ctx, evt.ConversationID, []sealr.MessageRecord{*rec})
	if err != nil {
		return err
	}
	msg := msgs[0]

	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.generation {
		return errStale
	}
	switch i := slices.IndexFunc(s.messages, func(m sealr.Message) bool { return m.ID == msg.ID }); {
	case i >= 0:
		s.messages[i] = msg
	case own:
		j := slices.IndexFunc(s.messages, func(m sealr.Message) bool {
			return m.Optimistic && m.Content == msg.Content
		})
		if j >= 0 {
			s.messages[j] = msg
		} else {
			s.messages = append(s.messages, msg)
		}
	default:
		s.messages = append(s.messages, msg)
	}
	sealr.AssignPositions(s.messages)
	return nil
}

// HandleReactionChanged refreshes the reaction of a loaded message. The
// user's own changes are already applied and are skipped.
func (s *Store) HandleReactionChanged(ctx context.Context, evt *sealr.ReactionChanged) error {
	if evt.By == s.self {
		return nil
	}
	id := strconv.FormatUint(evt.MessageID, 10)

	s.lock.Lock()
	if s.active == nil || !slices.ContainsFunc(s.messages, func(m sealr.Message) bool { return m.ID == id }) {
		s.lock.Unlock()
		return nil
	}
	convID := s.active.ID
	gen := s.generation
	s.lock.Unlock()

	rec, err := s.ledger.GetMessage(ctx, evt.MessageID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %d", sealr.ErrMessageNotFound, evt.MessageID)
	}
	msgs, err := s.decrypt(ctx, convID, []sealr.MessageRecord{{
		ID:       rec.ID,
		Sender:   rec.Sender,
		Reaction: rec.Reaction,
	}})
	if err != nil {
		return err
	}

	s.lock.Lock()
	stale := gen != s.generation
	s.lock.Unlock()
	if stale {
		return errStale
	}
	s.patchMessage(id, func(m *sealr.Message) {
		m.ReactionHandle = rec.Reaction
		m.Reaction = msgs[0].Reaction
	})
	return nil
}

// Subscribe applies the events of source in delivery order on a separate
// goroutine. The returned function unsubscribes and waits for queued events
// to be applied.
func (s *Store) Subscribe(ctx context.Context, source sealr.EventSource) func() {
	var (
		queue  = make(chan any, eventQueueSize)
		done   = make(chan struct{})
		lock   sync.Mutex
		closed bool
	)
	id := source.AddEventHandler(func(evt any) {
		switch evt.(type) {
		case *sealr.MessageSent, *sealr.ReactionChanged:
		default:
			return
		}
		lock.Lock()
		defer lock.Unlock()
		if !closed {
			queue <- evt
		}
	})

	go func() {
		defer close(done)
		for evt := range queue {
			s.handle(ctx, evt)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			source.RemoveEventHandler(id)
			lock.Lock()
			closed = true
			close(queue)
			lock.Unlock()
			<-done
		})
	}
}

func (s *Store) handle(ctx context.Context, evt any) {
	var err error
	switch e := evt.(type) {
	case *sealr.MessageSent:
		err = s.HandleMessageSent(ctx, e)
		if err != nil && !errors.Is(err, errStale) {
			s.log.Warn(
				"Failed to apply sent message",
				zap.Uint64("messageID", e.MessageID),
				zap.Uint64("conversationID", e.ConversationID),
				log.Err(err),
			)
		}
	case *sealr.ReactionChanged:
		err = s.HandleReactionChanged(ctx, e)
		if err != nil && !errors.Is(err, errStale) {
			s.log.Warn(
				"Failed to apply reaction change",
				zap.Uint64("messageID", e.MessageID),
				log.Err(err),
			)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
