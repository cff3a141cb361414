// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/crypto/fhe"
)

var errNoStrategies = errors.New("no send strategies configured")

// SendStrategy is one way of submitting a messenger send. Strategies are
// tried in order until one succeeds.
type SendStrategy interface {
	Name() string
	prepare(ctx context.Context, s *Submitter) (quoted fhe.Handle, attestation []byte, err error)
}

// PreparedSend attaches an encrypted zero quoted reference and its
// attestation. It requires a ready co-processor.
type PreparedSend struct{}

func (PreparedSend) Name() string {
	return "prepared"
}

func (PreparedSend) prepare(ctx context.Context, s *Submitter) (fhe.Handle, []byte, error) {
	if _, err := s.engine.WaitReady(ctx, s.config.ReadyTimeout, s.config.ReadyInterval); err != nil {
		return fhe.Handle{}, nil, err
	}
	ref, err := s.engine.PrepareQuotedReference(ctx, s.config.Contract, s.from)
	if err != nil {
		return fhe.Handle{}, nil, err
	}
	return ref.Ciphertext, ref.Proof, nil
}

// LegacySend submits without a quoted reference or attestation.
type LegacySend struct{}

func (LegacySend) Name() string {
	return "legacy"
}

func (LegacySend) prepare(context.Context, *Submitter) (fhe.Handle, []byte, error) {
	return fhe.Handle{}, nil, nil
}

// DefaultStrategies tries the prepared path first and falls back to legacy.
func DefaultStrategies() []SendStrategy {
	return []SendStrategy{PreparedSend{}, LegacySend{}}
}

type Config struct {
	// Contract is the address encrypted inputs are bound to.
	Contract      common.Address
	Strategies    []SendStrategy
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
}

func (c *Config) setDefaults() {
	if len(c.Strategies) == 0 {
		c.Strategies = DefaultStrategies()
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = fhe.DefaultReadyTimeout
	}
	if c.ReadyInterval <= 0 {
		c.ReadyInterval = fhe.DefaultReadyInterval
	}
}

// Sent describes a confirmed send.
type Sent struct {
	MessageID string
	Strategy  string
	Receipt   *types.Receipt
}

func (s *Sent) TxHash() common.Hash {
	return s.Receipt.TxHash
}

// Submitter encrypts and submits messages, waits for inclusion and extracts
// the emitted message id.
type Submitter struct {
	log       log.Logger
	engine    *fhe.Engine
	ledger    sealr.LedgerWriter
	messenger sealr.Messenger
	from      common.Address
	metrics   *Metrics
	config    Config
}

// NewSubmitter returns a Submitter sending as from. Either ledger or
// messenger may be nil when the corresponding sends are unused.
func NewSubmitter(
	logger log.Logger,
	engine *fhe.Engine,
	ledger sealr.LedgerWriter,
	messenger sealr.Messenger,
	from common.Address,
	metrics *Metrics,
	config Config,
) *Submitter {
	config.setDefaults()
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Submitter{
		log:       logger.With(log.Stringer("from", from)),
		engine:    engine,
		ledger:    ledger,
		messenger: messenger,
		from:      from,
		metrics:   metrics,
		config:    config,
	}
}

func (s *Submitter) From() common.Address {
	return s.from
}

// SendDirect sends plaintext to a single recipient.
func (s *Submitter) SendDirect(ctx context.Context, to common.Address, plaintext string) (*Sent, error) {
	if to == (common.Address{}) {
		return nil, sealr.ErrInvalidRecipient
	}
	return s.send(ctx, plaintext, func(ctx context.Context, content []byte, quoted fhe.Handle, attestation []byte) (sealr.Transaction, error) {
		return s.messenger.SendDirect(ctx, to, content, quoted, attestation)
	})
}

// SendChannel sends plaintext to the channel named channelName.
func (s *Submitter) SendChannel(ctx context.Context, channelName string, plaintext string) (*Sent, error) {
	channel := sealr.ChannelID(channelName)
	return s.send(ctx, plaintext, func(ctx context.Context, content []byte, quoted fhe.Handle, attestation []byte) (sealr.Transaction, error) {
		return s.messenger.SendToChannel(ctx, channel, content, quoted, attestation)
	})
}

// CreateChannel registers the channel named channelName with members.
func (s *Submitter) CreateChannel(ctx context.Context, channelName string, members []common.Address) (*types.Receipt, error) {
	tx, err := s.messenger.CreateChannel(ctx, sealr.ChannelID(channelName), members)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, tx)
}

type submitFunc func(ctx context.Context, content []byte, quoted fhe.Handle, attestation []byte) (sealr.Transaction, error)

func (s *Submitter) send(ctx context.Context, plaintext string, submit submitFunc) (*Sent, error) {
	if plaintext == "" {
		return nil, sealr.ErrEmptyMessage
	}
	if len(s.config.Strategies) == 0 {
		return nil, errNoStrategies
	}

	var errs []error
	for i, strategy := range s.config.Strategies {
		sent, err := s.sendWith(ctx, strategy, plaintext, submit)
		if err == nil {
			s.metrics.sends.WithLabelValues(strategy.Name(), "success").Inc()
			return sent, nil
		}
		s.metrics.sends.WithLabelValues(strategy.Name(), "failure").Inc()
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(s.config.Strategies)-1 {
			s.metrics.fallbacks.WithLabelValues(strategy.Name()).Inc()
			s.log.Warn(
				"Send failed, falling back",
				zap.String("strategy", strategy.Name()),
				zap.String("next", s.config.Strategies[i+1].Name()),
				log.Err(err),
			)
		}
	}
	err := errors.Join(errs...)
	s.log.Error("Failed to send message", log.Err(err))
	return nil, err
}

func (s *Submitter) sendWith(ctx context.Context, strategy SendStrategy, plaintext string, submit submitFunc) (*Sent, error) {
	quoted, attestation, err := strategy.prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	tx, err := submit(ctx, []byte(plaintext), quoted, attestation)
	if err != nil {
		return nil, err
	}
	receipt, err := s.Await(ctx, tx)
	if err != nil {
		return nil, err
	}
	id, err := ExtractMessageID(receipt, sealr.DirectMessageSentTopic)
	if err != nil {
		return nil, err
	}
	s.log.Info(
		"Sent message",
		zap.String("strategy", strategy.Name()),
		zap.String("messageID", id),
		log.Stringer("txID", receipt.TxHash),
	)
	return &Sent{MessageID: id, Strategy: strategy.Name(), Receipt: receipt}, nil
}

// EncryptedMessage is a conversation message ready for submission.
type EncryptedMessage struct {
	Content  *fhe.EncryptedPayload
	Reaction *fhe.EncryptedValue
}

// EncryptMessage encrypts text and reaction for the conversation contract.
func (s *Submitter) EncryptMessage(ctx context.Context, text string, reaction sealr.Reaction) (*EncryptedMessage, error) {
	if text == "" {
		return nil, sealr.ErrEmptyMessage
	}
	if _, err := s.engine.WaitReady(ctx, s.config.ReadyTimeout, s.config.ReadyInterval); err != nil {
		return nil, err
	}
	content, err := s.engine.EncryptChunks(ctx, s.config.Contract, s.from, sealr.EncodeToChunks(text))
	if err != nil {
		return nil, err
	}
	value, err := sealr.EncodeValue(string(reaction))
	if err != nil {
		return nil, err
	}
	enc, err := s.engine.EncryptSingleValue(ctx, s.config.Contract, s.from, value)
	if err != nil {
		return nil, err
	}
	return &EncryptedMessage{Content: content, Reaction: enc}, nil
}

// SubmitConversationMessage submits msg to conversationID and returns the
// confirmed message id. There is no unattested fallback.
func (s *Submitter) SubmitConversationMessage(ctx context.Context, conversationID uint64, msg *EncryptedMessage) (*Sent, error) {
	if err := msg.Content.Verify(); err != nil {
		return nil, err
	}
	tx, err := s.ledger.SendMessage(
		ctx,
		conversationID,
		msg.Content.Ciphertexts,
		msg.Content.Proofs,
		msg.Reaction.Ciphertext,
		msg.Reaction.Proof,
	)
	if err != nil {
		s.metrics.sends.WithLabelValues(PreparedSend{}.Name(), "failure").Inc()
		return nil, err
	}
	receipt, err := s.Await(ctx, tx)
	if err != nil {
		s.metrics.sends.WithLabelValues(PreparedSend{}.Name(), "failure").Inc()
		return nil, err
	}
	id, err := ExtractMessageID(receipt, sealr.MessageSentTopic)
	if err != nil {
		s.metrics.sends.WithLabelValues(PreparedSend{}.Name(), "failure").Inc()
		return nil, err
	}
	s.metrics.sends.WithLabelValues(PreparedSend{}.Name(), "success").Inc()
	return &Sent{MessageID: id, Strategy: PreparedSend{}.Name(), Receipt: receipt}, nil
}

// SendConversationMessage encrypts and submits text to conversationID.
func (s *Submitter) SendConversationMessage(ctx context.Context, conversationID uint64, text string, reaction sealr.Reaction) (*Sent, error) {
	msg, err := s.EncryptMessage(ctx, text, reaction)
	if err != nil {
		return nil, err
	}
	return s.SubmitConversationMessage(ctx, conversationID, msg)
}

// ChangeReaction encrypts reaction and sets it on messageID.
func (s *Submitter) ChangeReaction(ctx context.Context, messageID uint64, reaction sealr.Reaction) (*types.Receipt, error) {
	value, err := sealr.EncodeValue(string(reaction))
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.WaitReady(ctx, s.config.ReadyTimeout, s.config.ReadyInterval); err != nil {
		return nil, err
	}
	enc, err := s.engine.EncryptSingleValue(ctx, s.config.Contract, s.from, value)
	if err != nil {
		return nil, err
	}
	tx, err := s.ledger.ChangeReaction(ctx, messageID, enc.Ciphertext, enc.Proof)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, tx)
}

// Await waits for tx and fails if it reverted.
func (s *Submitter) Await(ctx context.Context, tx sealr.Transaction) (*types.Receipt, error) {
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkReceipt(receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}
