// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/crypto/fhe"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	contract = common.HexToAddress("0x00000000000000000000000000000000000c0de5")
)

type notReady struct{}

func (notReady) Client() (fhe.Client, fhe.Status, error) {
	return nil, fhe.StatusLoading, nil
}

func newTestSubmitter(instance fhe.Instance, ledger *sealr.FakeLedger) *Submitter {
	logger := log.NewNoOpLogger()
	return NewSubmitter(
		logger,
		fhe.NewEngine(logger, instance, 0),
		ledger,
		ledger,
		alice,
		NewMetrics(prometheus.NewRegistry()),
		Config{
			Contract:      contract,
			ReadyTimeout:  50 * time.Millisecond,
			ReadyInterval: 5 * time.Millisecond,
		},
	)
}

func TestSendDirect(t *testing.T) {
	tests := []struct {
		name         string
		instance     func(*fhe.FakeClient) fhe.Instance
		omitProof    bool
		faults       sealr.FakeLedgerFaults
		wantStrategy string
		wantErr      error
	}{
		{
			name:         "prepared",
			instance:     func(c *fhe.FakeClient) fhe.Instance { return fhe.Ready(c) },
			faults:       sealr.FakeLedgerFaults{RejectUnattested: true},
			wantStrategy: "prepared",
		},
		{
			name:         "missing attestation falls back",
			instance:     func(c *fhe.FakeClient) fhe.Instance { return fhe.Ready(c) },
			omitProof:    true,
			wantStrategy: "legacy",
		},
		{
			name:         "not ready falls back",
			instance:     func(*fhe.FakeClient) fhe.Instance { return notReady{} },
			wantStrategy: "legacy",
		},
		{
			name:      "legacy failure is terminal",
			instance:  func(c *fhe.FakeClient) fhe.Instance { return fhe.Ready(c) },
			omitProof: true,
			faults:    sealr.FakeLedgerFaults{RejectUnattested: true},
			wantErr:   sealr.ErrFakeReverted,
		},
		{
			name:     "no logs",
			instance: func(c *fhe.FakeClient) fhe.Instance { return fhe.Ready(c) },
			faults:   sealr.FakeLedgerFaults{OmitLogs: true},
			wantErr:  sealr.ErrMessageIDNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			client := fhe.NewFakeClient()
			client.OmitProof = test.omitProof
			ledger := sealr.NewFakeLedger(alice)
			ledger.SetFaults(test.faults)
			s := newTestSubmitter(test.instance(client), ledger)

			sent, err := s.SendDirect(ctx, bob, "hello bob")
			require.ErrorIs(err, test.wantErr)
			if test.wantErr != nil {
				return
			}
			require.Equal(test.wantStrategy, sent.Strategy)
			require.Equal("1", sent.MessageID)
			require.NotEqual(common.Hash{}, sent.TxHash())

			content, err := ledger.GetMessageCiphertext(ctx, 1)
			require.NoError(err)
			require.Equal([]byte("hello bob"), content)

			inbox, err := ledger.InboxOf(ctx, bob)
			require.NoError(err)
			require.Equal([]uint64{1}, inbox)
		})
	}
}

func TestSendDirectValidation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), sealr.NewFakeLedger(alice))

	_, err := s.SendDirect(ctx, common.Address{}, "hi")
	require.ErrorIs(err, sealr.ErrInvalidRecipient)

	_, err = s.SendDirect(ctx, bob, "")
	require.ErrorIs(err, sealr.ErrEmptyMessage)
}

func TestSendChannel(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), ledger)

	_, err := s.CreateChannel(ctx, "general", []common.Address{alice, bob})
	require.NoError(err)

	for _, text := range []string{"one", "two", "three"} {
		sent, err := s.SendChannel(ctx, "general", text)
		require.NoError(err)
		require.Equal("prepared", sent.Strategy)
	}

	r := NewReader(log.NewNoOpLogger(), ledger)
	msgs, err := r.FetchChannel(ctx, "general", 1, 5)
	require.NoError(err)
	require.Len(msgs, 2)
	require.Equal("2", msgs[0].ID)
	require.Equal([]byte("two"), msgs[0].Content)
	require.Equal(sealr.ChannelID("general"), msgs[0].Channel)
	require.Equal(alice, msgs[1].Sender)
	require.NotZero(msgs[1].TimestampMilli)
	require.Zero(msgs[1].TimestampMilli % 1000)
}

func TestReaderPaging(t *testing.T) {
	ctx := context.Background()

	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), ledger)
	for i := 0; i < 5; i++ {
		_, err := s.SendDirect(ctx, bob, "ping")
		require.NoError(t, err)
	}
	r := NewReader(log.NewNoOpLogger(), ledger)

	tests := []struct {
		name    string
		offset  int
		limit   int
		wantIDs []string
	}{
		{name: "first page", offset: 0, limit: 2, wantIDs: []string{"1", "2"}},
		{name: "clamped", offset: 3, limit: 10, wantIDs: []string{"4", "5"}},
		{name: "past end", offset: 5, limit: 2},
		{name: "zero limit", offset: 0, limit: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			msgs, err := r.FetchInbox(ctx, bob, test.offset, test.limit)
			require.NoError(err)
			var ids []string
			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
			require.Equal(test.wantIDs, ids)
		})
	}
}

func TestMarkAsReadAndSoftDelete(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), ledger)
	_, err := s.SendDirect(ctx, bob, "read me")
	require.NoError(err)

	require.NoError(newTestSubmitter(fhe.Ready(fhe.NewFakeClient()), ledger.As(bob)).MarkAsRead(ctx, 1))
	require.True(ledger.IsRead(1))

	require.NoError(s.SoftDelete(ctx, 1))
	header, err := ledger.GetMessageHeader(ctx, 1)
	require.NoError(err)
	require.True(header.Deleted)
}

func TestSendConversationMessage(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := fhe.NewFakeClient()
	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(client), ledger)

	convID, err := ledger.GetOrCreateDirectConversation(ctx, bob)
	require.NoError(err)

	text := "a conversation message that spans more than one chunk"
	sent, err := s.SendConversationMessage(ctx, convID, text, sealr.ReactionNone)
	require.NoError(err)
	require.Equal("prepared", sent.Strategy)

	rec, err := ledger.GetMessage(ctx, 1)
	require.NoError(err)
	require.Len(rec.Content, len(sealr.EncodeToChunks(text)))
	require.NotEqual(fhe.Handle{}, rec.Reaction)

	pairs := make([]fhe.HandleContractPair, 0, len(rec.Content)+1)
	for _, h := range append(rec.Content, rec.Reaction) {
		pairs = append(pairs, fhe.HandleContractPair{Handle: h, Contract: contract})
	}
	plain, err := client.UserDecrypt(ctx, pairs, &fhe.DecryptionSignature{Signature: []byte{1}})
	require.NoError(err)

	var got []byte
	for _, h := range rec.Content {
		b, err := sealr.DecodePlaintext(plain[h])
		require.NoError(err)
		got = append(got, b...)
	}
	require.Equal(text, string(got))

	reaction, err := sealr.DecodePlaintext(plain[rec.Reaction])
	require.NoError(err)
	require.Equal("none", string(reaction))
}

func TestSendConversationMessageNotReady(t *testing.T) {
	require := require.New(t)

	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(notReady{}, ledger)

	_, err := s.SendConversationMessage(context.Background(), 1, "hi", sealr.ReactionNone)
	require.ErrorIs(err, fhe.ErrNotReady)
}

func TestChangeReaction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := fhe.NewFakeClient()
	ledger := sealr.NewFakeLedger(alice)
	s := newTestSubmitter(fhe.Ready(client), ledger)

	convID, err := ledger.GetOrCreateDirectConversation(ctx, bob)
	require.NoError(err)
	_, err = s.SendConversationMessage(ctx, convID, "hi", sealr.ReactionNone)
	require.NoError(err)

	_, err = s.ChangeReaction(ctx, 1, sealr.ReactionLove)
	require.NoError(err)

	rec, err := ledger.GetMessage(ctx, 1)
	require.NoError(err)
	plain, err := client.UserDecrypt(ctx, []fhe.HandleContractPair{{Handle: rec.Reaction, Contract: contract}}, &fhe.DecryptionSignature{Signature: []byte{1}})
	require.NoError(err)
	b, err := sealr.DecodePlaintext(plain[rec.Reaction])
	require.NoError(err)
	require.Equal("love", string(b))
}

func TestMessengerIDsAreSeparate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	carol := common.HexToAddress("0x00000000000000000000000000000000000ca201")
	conversations := sealr.NewFakeLedger(alice)
	messenger := sealr.NewFakeLedger(alice)
	logger := log.NewNoOpLogger()
	s := NewSubmitter(
		logger,
		fhe.NewEngine(logger, fhe.Ready(fhe.NewFakeClient()), 0),
		conversations,
		messenger,
		alice,
		nil,
		Config{Contract: contract, ReadyTimeout: 50 * time.Millisecond, ReadyInterval: 5 * time.Millisecond},
	)

	_, err := messenger.As(carol).SendDirect(ctx, bob, []byte("not for alice"), fhe.Handle{}, nil)
	require.NoError(err)
	convID, err := conversations.GetOrCreateDirectConversation(ctx, bob)
	require.NoError(err)
	sent, err := s.SendConversationMessage(ctx, convID, "mine", sealr.ReactionNone)
	require.NoError(err)
	require.Equal("1", sent.MessageID)

	// Id 1 on the messenger is carol's message and cannot be touched by alice.
	require.ErrorIs(s.SoftDelete(ctx, 1), sealr.ErrFakeReverted)
	header, err := messenger.GetMessageHeader(ctx, 1)
	require.NoError(err)
	require.False(header.Deleted)
	msgs, err := conversations.GetMessages(ctx, convID)
	require.NoError(err)
	require.Len(msgs, 1)

	dm, err := s.SendDirect(ctx, bob, "mine too")
	require.NoError(err)
	require.Equal("2", dm.MessageID)
	require.NoError(s.SoftDelete(ctx, 2))
	header, err = messenger.GetMessageHeader(ctx, 2)
	require.NoError(err)
	require.True(header.Deleted)
}
