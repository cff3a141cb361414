// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/crypto/fhe"
)

func TestSubscriberDecodesReceipts(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), ledger)

	sub := NewSubscriber(log.NewNoOpLogger(), common.Address{})
	var events []any
	sub.AddEventHandler(func(evt any) {
		events = append(events, evt)
	})

	convID, err := ledger.GetOrCreateDirectConversation(ctx, bob)
	require.NoError(err)
	sent, err := s.SendConversationMessage(ctx, convID, "hi", sealr.ReactionNone)
	require.NoError(err)
	sub.HandleReceipt(sent.Receipt)

	receipt, err := s.ChangeReaction(ctx, 1, sealr.ReactionWow)
	require.NoError(err)
	sub.HandleReceipt(receipt)

	direct, err := s.SendDirect(ctx, bob, "dm")
	require.NoError(err)
	sub.HandleReceipt(direct.Receipt)

	tx, err := ledger.CreateGroupConversation(ctx, "team", []common.Address{bob})
	require.NoError(err)
	receipt, err = tx.Wait(ctx)
	require.NoError(err)
	sub.HandleReceipt(receipt)

	tx, err = ledger.DeleteConversation(ctx, convID)
	require.NoError(err)
	receipt, err = tx.Wait(ctx)
	require.NoError(err)
	sub.HandleReceipt(receipt)

	require.Len(events, 5)
	require.Equal(&sealr.MessageSent{MessageID: 1, ConversationID: convID, From: alice}, events[0])
	require.Equal(&sealr.ReactionChanged{MessageID: 1, By: alice}, events[1])

	dm, ok := events[2].(*sealr.DirectMessageSent)
	require.True(ok)
	require.Equal(uint64(1), dm.MessageID)
	require.Equal(alice, dm.Sender)
	require.Equal(bob, dm.Receiver)
	require.NotZero(dm.Timestamp)

	created, ok := events[3].(*sealr.ConversationCreated)
	require.True(ok)
	require.Equal(sealr.GroupConversation, created.Type)

	require.Equal(&sealr.ConversationDeleted{ConversationID: convID, By: alice}, events[4])
}

func TestSubscriberFilters(t *testing.T) {
	require := require.New(t)

	sub := NewSubscriber(log.NewNoOpLogger(), contract)
	count := 0
	sub.AddEventHandler(func(any) { count++ })

	valid := types.Log{
		Address: contract,
		Topics:  []common.Hash{sealr.ReactionChangedTopic, idTopic(1), common.BytesToHash(bob.Bytes())},
	}
	require.True(sub.HandleLog(valid))

	otherContract := valid
	otherContract.Address = bob
	require.False(sub.HandleLog(otherContract))

	removed := valid
	removed.Removed = true
	require.False(sub.HandleLog(removed))

	unknown := types.Log{Address: contract, Topics: []common.Hash{common.HexToHash("0x99")}}
	require.False(sub.HandleLog(unknown))

	malformed := types.Log{Address: contract, Topics: []common.Hash{sealr.MessageSentTopic, idTopic(1)}}
	require.False(sub.HandleLog(malformed))

	require.Equal(1, count)
}

func TestSubscriberRun(t *testing.T) {
	require := require.New(t)

	sub := NewSubscriber(log.NewNoOpLogger(), common.Address{})
	got := make(chan any, 1)
	id := sub.AddEventHandler(func(evt any) { got <- evt })

	logs := make(chan types.Log, 1)
	logs <- types.Log{Topics: []common.Hash{sealr.ReactionChangedTopic, idTopic(9), common.BytesToHash(alice.Bytes())}}
	close(logs)

	require.NoError(sub.Run(context.Background(), logs, nil))
	require.Equal(&sealr.ReactionChanged{MessageID: 9, By: alice}, <-got)
	require.True(sub.RemoveEventHandler(id))
}

type codedError struct{ code int }

func (e codedError) Error() string  { return "rpc error" }
func (e codedError) ErrorCode() int { return e.code }

func TestSubscriberRunSurvivesTransientErrors(t *testing.T) {
	errFatal := errors.New("connection refused")
	tests := []struct {
		name       string
		err        error
		wantErr    error
		wantEvents int
	}{
		{
			name:       "filter dropped",
			err:        errors.New("eth_getFilterChanges: filter not found"),
			wantEvents: 1,
		},
		{
			name:       "invalid parameters",
			err:        errors.New("Missing or invalid parameters"),
			wantEvents: 1,
		},
		{
			name:       "server error code",
			err:        codedError{code: -32000},
			wantEvents: 1,
		},
		{
			name:       "fatal error",
			err:        errFatal,
			wantErr:    errFatal,
			wantEvents: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sub := NewSubscriber(log.NewNoOpLogger(), common.Address{})
			events := 0
			sub.AddEventHandler(func(any) { events++ })

			logs := make(chan types.Log)
			errs := make(chan error)
			go func() {
				errs <- tt.err
				select {
				case logs <- types.Log{Topics: []common.Hash{sealr.ReactionChangedTopic, idTopic(3), common.BytesToHash(bob.Bytes())}}:
					close(logs)
				case <-ctx.Done():
				}
			}()

			err := sub.Run(ctx, logs, errs)
			require.ErrorIs(err, tt.wantErr)
			require.Equal(tt.wantEvents, events)
		})
	}
}

func TestSubscriberResubscribes(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	sub := NewSubscriber(log.NewNoOpLogger(), common.Address{})
	got := make(chan any, 1)
	sub.AddEventHandler(func(evt any) { got <- evt })

	var opens atomic.Int32
	source := func(context.Context) (<-chan types.Log, <-chan error, error) {
		logs := make(chan types.Log, 1)
		errs := make(chan error, 1)
		if opens.Add(1) == 1 {
			errs <- errors.New("filter not found")
			return logs, errs, nil
		}
		logs <- types.Log{Topics: []common.Hash{sealr.ReactionChangedTopic, idTopic(4), common.BytesToHash(alice.Bytes())}}
		close(logs)
		return logs, errs, nil
	}

	require.NoError(sub.Subscribe(ctx, source, time.Second))
	require.Equal(int32(2), opens.Load())
	require.Equal(&sealr.ReactionChanged{MessageID: 4, By: alice}, <-got)
}

func TestSubscribeFatalError(t *testing.T) {
	require := require.New(t)

	errFatal := errors.New("connection refused")
	sub := NewSubscriber(log.NewNoOpLogger(), common.Address{})
	opens := 0
	source := func(context.Context) (<-chan types.Log, <-chan error, error) {
		opens++
		errs := make(chan error, 1)
		errs <- errFatal
		return make(chan types.Log), errs, nil
	}

	require.ErrorIs(sub.Subscribe(context.Background(), source, time.Second), errFatal)
	require.Equal(1, opens)
}

func TestDecodeLogRejectsWideIDs(t *testing.T) {
	require := require.New(t)

	wide := common.BigToHash(new(big.Int).Lsh(big.NewInt(1), 64))
	_, err := DecodeLog(types.Log{
		Topics: []common.Hash{sealr.ReactionChangedTopic, wide, common.BytesToHash(alice.Bytes())},
	})
	require.ErrorIs(err, errMalformedLog)

	evt, err := DecodeLog(types.Log{
		Topics: []common.Hash{sealr.ReactionChangedTopic, idTopic(1 << 62), common.BytesToHash(alice.Bytes())},
	})
	require.NoError(err)
	require.Equal(uint64(1<<62), evt.(*sealr.ReactionChanged).MessageID)
}
