// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/utils"
)

// DefaultResubscribeTimeout bounds the retries of reopening a subscription.
const DefaultResubscribeTimeout = 30 * time.Second

// rpcServerErrorCode is the JSON-RPC code providers use for dropped filters.
const rpcServerErrorCode = -32000

var transientErrors = []string{
	"eth_getFilterChanges",
	"filter not found",
	"Missing or invalid parameters",
}

var (
	_ sealr.EventSource = (*Subscriber)(nil)

	ErrUnknownEvent = errors.New("unknown event")
	errMalformedLog = errors.New("malformed log")
)

// Subscriber decodes contract logs into events and dispatches them to its
// handlers.
type Subscriber struct {
	sealr.Dispatcher

	log      log.Logger
	contract common.Address
}

// NewSubscriber returns a Subscriber for logs emitted by contract. A zero
// contract accepts logs from any address.
func NewSubscriber(logger log.Logger, contract common.Address) *Subscriber {
	return &Subscriber{
		log:      logger,
		contract: contract,
	}
}

// LogSource opens a log subscription. The error channel reports failures of
// the open subscription.
type LogSource func(ctx context.Context) (<-chan types.Log, <-chan error, error)

// Run dispatches logs until ctx is done, logs is closed, or errs yields an
// error that is not transient. Transient provider errors are logged and the
// stream keeps being consumed.
func (s *Subscriber) Run(ctx context.Context, logs <-chan types.Log, errs <-chan error) error {
	for {
		err := s.consume(ctx, logs, errs)
		if !IsTransient(err) {
			return err
		}
		s.log.Warn("Transient log subscription error", log.Err(err))
	}
}

// Subscribe opens a subscription from source and dispatches its logs until
// ctx is done or the subscription fails with an error that is not
// transient. After a transient error the subscription is reopened, retrying
// the open with backoff for at most resubscribeTimeout.
func (s *Subscriber) Subscribe(ctx context.Context, source LogSource, resubscribeTimeout time.Duration) error {
	if resubscribeTimeout <= 0 {
		resubscribeTimeout = DefaultResubscribeTimeout
	}
	for {
		var (
			logs <-chan types.Log
			errs <-chan error
		)
		err := utils.WithRetriesTimeout(ctx, s.log, func() error {
			var err error
			logs, errs, err = source(ctx)
			return err
		}, resubscribeTimeout, "subscribeLogs")
		if err != nil {
			return fmt.Errorf("failed to open log subscription: %w", err)
		}

		err = s.consume(ctx, logs, errs)
		if !IsTransient(err) {
			return err
		}
		s.log.Warn("Transient log subscription error, resubscribing", log.Err(err))
	}
}

// consume dispatches logs until ctx is done, logs is closed, or errs yields
// an error.
func (s *Subscriber) consume(ctx context.Context, logs <-chan types.Log, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err != nil && !IsTransient(err) {
				s.log.Error("Log subscription failed", log.Err(err))
			}
			return err
		case l, ok := <-logs:
			if !ok {
				return nil
			}
			s.HandleLog(l)
		}
	}
}

// IsTransient reports whether err is a provider filter error that clears on
// its own or after resubscribing.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) && coded.ErrorCode() == rpcServerErrorCode {
		return true
	}
	msg := err.Error()
	for _, s := range transientErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// HandleReceipt dispatches the events carried by receipt.
func (s *Subscriber) HandleReceipt(receipt *types.Receipt) {
	for _, l := range receipt.Logs {
		if l != nil {
			s.HandleLog(*l)
		}
	}
}

// HandleLog decodes and dispatches one log. It reports whether an event was
// dispatched.
func (s *Subscriber) HandleLog(l types.Log) bool {
	if s.contract != (common.Address{}) && l.Address != s.contract {
		return false
	}
	if l.Removed {
		s.log.Debug("Skipping removed log", log.Stringer("txID", l.TxHash))
		return false
	}
	evt, err := DecodeLog(l)
	if err != nil {
		if !errors.Is(err, ErrUnknownEvent) {
			s.log.Warn(
				"Failed to decode log",
				log.Stringer("txID", l.TxHash),
				zap.Uint("index", l.Index),
				log.Err(err),
			)
		}
		return false
	}
	s.Dispatch(evt)
	return true
}

// DecodeLog decodes a contract log into one of the sealr event structs.
// Indexed ids that do not fit in 64 bits are rejected as malformed.
func DecodeLog(l types.Log) (any, error) {
	if len(l.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	switch l.Topics[0] {
	case sealr.MessageSentTopic:
		if len(l.Topics) < 4 {
			return nil, fmt.Errorf("%w: MessageSent has %d topics", errMalformedLog, len(l.Topics))
		}
		ids, err := topicUint64s(l.Topics[1:3])
		if err != nil {
			return nil, err
		}
		return &sealr.MessageSent{
			MessageID:      ids[0],
			ConversationID: ids[1],
			From:           common.BytesToAddress(l.Topics[3].Bytes()),
		}, nil
	case sealr.ReactionChangedTopic:
		if len(l.Topics) < 3 {
			return nil, fmt.Errorf("%w: ReactionChanged has %d topics", errMalformedLog, len(l.Topics))
		}
		ids, err := topicUint64s(l.Topics[1:2])
		if err != nil {
			return nil, err
		}
		return &sealr.ReactionChanged{
			MessageID: ids[0],
			By:        common.BytesToAddress(l.Topics[2].Bytes()),
		}, nil
	case sealr.ConversationCreatedTopic:
		if len(l.Topics) < 2 || len(l.Data) < 32 {
			return nil, fmt.Errorf("%w: ConversationCreated", errMalformedLog)
		}
		ids, err := topicUint64s(l.Topics[1:2])
		if err != nil {
			return nil, err
		}
		return &sealr.ConversationCreated{
			ConversationID: ids[0],
			Type:           sealr.ConversationType(l.Data[31]),
		}, nil
	case sealr.ConversationDeletedTopic:
		if len(l.Topics) < 3 {
			return nil, fmt.Errorf("%w: ConversationDeleted has %d topics", errMalformedLog, len(l.Topics))
		}
		ids, err := topicUint64s(l.Topics[1:2])
		if err != nil {
			return nil, err
		}
		return &sealr.ConversationDeleted{
			ConversationID: ids[0],
			By:             common.BytesToAddress(l.Topics[2].Bytes()),
		}, nil
	case sealr.DirectMessageSentTopic:
		if len(l.Topics) < 4 || len(l.Data) < 64 {
			return nil, fmt.Errorf("%w: MessageSent", errMalformedLog)
		}
		ids, err := topicUint64s(l.Topics[1:2])
		if err != nil {
			return nil, err
		}
		return &sealr.DirectMessageSent{
			MessageID: ids[0],
			Sender:    common.BytesToAddress(l.Topics[2].Bytes()),
			Receiver:  common.BytesToAddress(l.Topics[3].Bytes()),
			Channel:   common.BytesToHash(l.Data[:32]),
			Timestamp: binary.BigEndian.Uint64(l.Data[56:64]),
		}, nil
	default:
		return nil, ErrUnknownEvent
	}
}

// topicUint64s reads indexed uint256 ids.
func topicUint64s(topics []common.Hash) ([]uint64, error) {
	ids := make([]uint64, len(topics))
	for i, h := range topics {
		for _, b := range h[:24] {
			if b != 0 {
				return nil, fmt.Errorf("%w: id %s exceeds 64 bits", errMalformedLog, h.Big())
			}
		}
		ids[i] = binary.BigEndian.Uint64(h[24:])
	}
	return ids, nil
}
