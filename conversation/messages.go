// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversation

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/decryption"
	"github.com/luxfi/sealr/vms/evm"
)

// LoadMessages reads and decrypts the newest messages of the active
// conversation. Optimistic messages survive a reload.
func (s *Store) LoadMessages(ctx context.Context) error {
	s.lock.Lock()
	if s.active == nil {
		s.lock.Unlock()
		return sealr.ErrNoActiveConversation
	}
	convID := s.active.ID
	gen := s.generation
	visible := s.visible
	s.state = StateLoading
	s.lock.Unlock()

	var msgs []sealr.Message
	err := func() error {
		if convID == 0 {
			return nil
		}
		records, err := s.ledger.GetMessages(ctx, convID)
		if err != nil {
			return err
		}
		slices.SortStableFunc(records, func(a, b sealr.MessageRecord) int {
			switch {
			case a.CreatedAt < b.CreatedAt:
				return -1
			case a.CreatedAt > b.CreatedAt:
				return 1
			default:
				return 0
			}
		})
		records = records[max(0, len(records)-visible):]
		msgs, err = s.decrypt(ctx, convID, records)
		return err
	}()

	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.generation {
		return nil
	}
	if err != nil {
		s.log.Warn(
			"Failed to load messages",
			zap.Uint64("conversationID", convID),
			log.Err(err),
		)
		s.state = StateError
		s.loadErr = err
		s.messages = nil
		return err
	}
	for _, m := range s.messages {
		if m.Optimistic {
			msgs = append(msgs, m)
		}
	}
	sealr.AssignPositions(msgs)
	s.messages = msgs
	s.state = StateLoaded
	s.loadErr = nil
	return nil
}

// LoadOlder widens the loaded window by one page and reloads.
func (s *Store) LoadOlder(ctx context.Context) error {
	s.lock.Lock()
	s.visible += s.config.PageSize
	s.lock.Unlock()
	return s.LoadMessages(ctx)
}

// decrypt resolves the handles of records and rebuilds their messages.
func (s *Store) decrypt(ctx context.Context, convID uint64, records []sealr.MessageRecord) ([]sealr.Message, error) {
	handles := decryption.Handles(records)
	if len(handles) == 0 {
		return decryption.Reconstruct(records, nil, s.self)
	}
	sig, err := s.signer.LoadOrSign(ctx, []common.Address{s.config.Contract})
	if err != nil {
		return nil, err
	}
	resolved, err := s.decrypter.Resolve(ctx, strconv.FormatUint(convID, 10), s.config.Contract, handles, sig)
	if err != nil {
		return nil, err
	}
	return decryption.Reconstruct(records, resolved, s.self)
}

// SendMessage sends text to the active conversation. An optimistic message
// is appended at once and replaced by the confirmed one. On failure it is
// removed, text is restored to the input and the error returned. The
// confirmed message id is returned.
func (s *Store) SendMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", sealr.ErrEmptyMessage
	}

	s.lock.Lock()
	if s.active == nil {
		s.lock.Unlock()
		return "", sealr.ErrNoActiveConversation
	}
	active := *s.active
	tempID := uuid.NewString()
	s.messages = append(s.messages, sealr.Message{
		ID:             tempID,
		ConversationID: active.ID,
		Sender:         s.self,
		CreatedAt:      uint64(time.Now().Unix()),
		Content:        text,
		Reaction:       sealr.ReactionNone,
		Direction:      sealr.Outgoing,
		Optimistic:     true,
	})
	sealr.AssignPositions(s.messages)
	s.sending = SendingEncrypting
	s.input = ""
	s.lock.Unlock()

	sent, err := s.send(ctx, active, tempID, text)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.sending = SendingIdle
	i := slices.IndexFunc(s.messages, func(m sealr.Message) bool { return m.ID == tempID })
	if err != nil {
		if i >= 0 {
			s.messages = slices.Delete(s.messages, i, i+1)
			sealr.AssignPositions(s.messages)
		}
		s.input = text
		s.log.Warn("Failed to send message", log.Err(err))
		return "", err
	}
	if i >= 0 {
		if slices.ContainsFunc(s.messages, func(m sealr.Message) bool { return m.ID == sent.MessageID }) {
			s.messages = slices.Delete(s.messages, i, i+1)
		} else {
			m := &s.messages[i]
			m.ID = sent.MessageID
			m.Optimistic = false
		}
		sealr.AssignPositions(s.messages)
	}
	return sent.MessageID, nil
}

func (s *Store) send(ctx context.Context, active sealr.Conversation, tempID, text string) (*evm.Sent, error) {
	convID := active.ID
	if convID == 0 {
		if active.Type != sealr.DirectConversation {
			return nil, sealr.ErrNoActiveConversation
		}
		id, err := s.GetOrCreateDirectConversation(ctx, active.Receiver)
		if err != nil {
			return nil, err
		}
		convID = id
		s.adoptConversationID(active.ID, convID, tempID)
	}

	enc, err := s.submitter.EncryptMessage(ctx, text, sealr.ReactionNone)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	s.sending = SendingSubmitting
	s.lock.Unlock()
	return s.submitter.SubmitConversationMessage(ctx, convID, enc)
}

// adoptConversationID gives an unsaved active conversation its on-chain id.
func (s *Store) adoptConversationID(from, to uint64, tempID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.active == nil || s.active.ID != from {
		return
	}
	s.active.ID = to
	for i := range s.messages {
		if s.messages[i].ID == tempID || s.messages[i].ConversationID == from {
			s.messages[i].ConversationID = to
		}
	}
}

// ChangeReaction sets the user's reaction on messageID.
func (s *Store) ChangeReaction(ctx context.Context, messageID string, reaction sealr.Reaction) error {
	id, err := strconv.ParseUint(messageID, 10, 64)
	if err != nil {
		return sealr.ErrMessageNotFound
	}
	if _, err := sealr.ParseReaction(string(reaction)); err != nil {
		return err
	}
	if _, err := s.submitter.ChangeReaction(ctx, id, reaction); err != nil {
		return err
	}
	s.patchMessage(messageID, func(m *sealr.Message) {
		m.Reaction = reaction
	})
	return nil
}

// patchMessage applies fn to the message with id, if loaded.
func (s *Store) patchMessage(id string, fn func(*sealr.Message)) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	i := slices.IndexFunc(s.messages, func(m sealr.Message) bool { return m.ID == id })
	if i < 0 {
		return false
	}
	fn(&s.messages[i])
	return true
}
