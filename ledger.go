// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"context"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/sealr/crypto/fhe"
)

// Transaction is a submitted ledger transaction.
type Transaction interface {
	Hash() common.Hash
	// Wait blocks until the transaction is included and returns its receipt.
	Wait(ctx context.Context) (*types.Receipt, error)
}

// LedgerReader is the read side of the messaging contract.
type LedgerReader interface {
	MyConversations(ctx context.Context, user common.Address) ([]ConversationRecord, error)
	GetMessages(ctx context.Context, conversationID uint64) ([]MessageRecord, error)
	GetMessage(ctx context.Context, messageID uint64) (*MessageRecord, error)
	GetProfileByAddress(ctx context.Context, user common.Address) (*Profile, error)
	NameExists(ctx context.Context, name string) (bool, error)
}

// LedgerWriter is the write side of the messaging contract.
type LedgerWriter interface {
	SendMessage(
		ctx context.Context,
		conversationID uint64,
		content []fhe.Handle,
		proofs [][]byte,
		reaction fhe.Handle,
		reactionProof []byte,
	) (Transaction, error)
	ChangeReaction(ctx context.Context, messageID uint64, reaction fhe.Handle, proof []byte) (Transaction, error)
	// GetOrCreateDirectConversation returns the id of the direct
	// conversation with other, creating it if needed.
	GetOrCreateDirectConversation(ctx context.Context, other common.Address) (uint64, error)
	CreateGroupConversation(ctx context.Context, name string, members []common.Address) (Transaction, error)
	DeleteConversation(ctx context.Context, conversationID uint64) (Transaction, error)
	CreateProfile(ctx context.Context, name string, avatarURL string) (Transaction, error)
	UpdateProfile(ctx context.Context, name string, avatarURL string) (Transaction, error)
}

// Ledger is the messaging contract.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// Messenger is the direct and channel messaging contract. Content is an
// opaque byte string; quoted is an encrypted quoted-message reference and
// attestation its input proof.
type Messenger interface {
	SendDirect(ctx context.Context, to common.Address, content []byte, quoted fhe.Handle, attestation []byte) (Transaction, error)
	SendToChannel(ctx context.Context, channel common.Hash, content []byte, quoted fhe.Handle, attestation []byte) (Transaction, error)
	CreateChannel(ctx context.Context, channel common.Hash, members []common.Address) (Transaction, error)
	MarkAsRead(ctx context.Context, messageID uint64) (Transaction, error)
	SoftDelete(ctx context.Context, messageID uint64) (Transaction, error)
	InboxOf(ctx context.Context, user common.Address) ([]uint64, error)
	ChannelMessages(ctx context.Context, channel common.Hash) ([]uint64, error)
	GetMessageHeader(ctx context.Context, messageID uint64) (*MessageHeader, error)
	GetMessageCiphertext(ctx context.Context, messageID uint64) ([]byte, error)
}
