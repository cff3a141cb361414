// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sealr/crypto/fhe"
)

func testAddr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestFakeLedgerConversationFlow(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	alice := NewFakeLedger(testAddr(1))
	bob := alice.As(testAddr(2))

	var events []any
	alice.Events().AddEventHandler(func(evt any) { events = append(events, evt) })

	convID, err := alice.GetOrCreateDirectConversation(ctx, testAddr(2))
	require.NoError(err)
	again, err := bob.GetOrCreateDirectConversation(ctx, testAddr(1))
	require.NoError(err)
	require.Equal(convID, again)

	tx, err := bob.SendMessage(ctx, convID, []fhe.Handle{{1}}, [][]byte{{1}}, fhe.Handle{2}, []byte{2})
	require.NoError(err)
	receipt, err := tx.Wait(ctx)
	require.NoError(err)
	require.Len(receipt.Logs, 1)
	require.Equal(MessageSentTopic, receipt.Logs[0].Topics[0])
	require.Equal(uint64(1), receipt.Logs[0].Topics[1].Big().Uint64())

	convs, err := alice.MyConversations(ctx, testAddr(1))
	require.NoError(err)
	require.Len(convs, 1)

	msgs, err := alice.GetMessages(ctx, convID)
	require.NoError(err)
	require.Len(msgs, 1)
	require.Equal(testAddr(2), msgs[0].Sender)

	require.Len(events, 2)
	require.IsType(&ConversationCreated{}, events[0])
	require.Equal(&MessageSent{MessageID: 1, ConversationID: convID, From: testAddr(2)}, events[1])
}

func TestFakeLedgerRejectsOutsiders(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	alice := NewFakeLedger(testAddr(1))
	convID, err := alice.GetOrCreateDirectConversation(ctx, testAddr(2))
	require.NoError(err)

	_, err = alice.As(testAddr(3)).SendMessage(ctx, convID, nil, nil, fhe.Handle{}, nil)
	require.ErrorIs(err, ErrFakeReverted)
}

func TestFakeLedgerSeparatesMessengerIDs(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	alice := NewFakeLedger(testAddr(1))
	carol := alice.As(testAddr(3))

	convID, err := alice.GetOrCreateDirectConversation(ctx, testAddr(2))
	require.NoError(err)
	_, err = alice.SendMessage(ctx, convID, []fhe.Handle{{1}}, [][]byte{{1}}, fhe.Handle{2}, nil)
	require.NoError(err)
	_, err = carol.SendDirect(ctx, testAddr(2), []byte("dm"), fhe.Handle{}, nil)
	require.NoError(err)

	// Both contracts number their first message 1.
	msg, err := alice.GetMessage(ctx, 1)
	require.NoError(err)
	require.Equal(convID, msg.ConversationID)
	header, err := alice.GetMessageHeader(ctx, 1)
	require.NoError(err)
	require.Equal(testAddr(3), header.Sender)

	// Messenger writes never reach conversation messages.
	_, err = alice.SoftDelete(ctx, 1)
	require.ErrorIs(err, ErrFakeReverted)
	_, err = alice.MarkAsRead(ctx, 2)
	require.ErrorIs(err, ErrFakeReverted)

	header, err = alice.GetMessageHeader(ctx, 1)
	require.NoError(err)
	require.False(header.Deleted)
	msgs, err := alice.GetMessages(ctx, convID)
	require.NoError(err)
	require.Len(msgs, 1)
}
