// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/sealr/crypto/fhe"
)

// ConversationType is the on-chain ctype of a conversation.
type ConversationType uint8

const (
	DirectConversation ConversationType = 0
	GroupConversation  ConversationType = 1
)

func (t ConversationType) String() string {
	if t == DirectConversation {
		return "direct"
	}
	return "group"
}

// Direction is a message's direction relative to the local user.
type Direction uint8

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// Conversation is the client view of a conversation. For direct
// conversations Sender is the local user and Receiver the other member. For
// groups Sender is the creator and both names carry the group name.
type Conversation struct {
	ID           uint64
	Type         ConversationType
	Creator      common.Address
	Members      []common.Address
	Sender       common.Address
	Receiver     common.Address
	SenderName   string
	ReceiverName string
	Info         string
	CreatedAt    uint64
	Status       uint8
}

// Message is a conversation message. Content is empty until the content
// handles are decrypted. Optimistic messages carry a temporary ID until the
// ledger confirms them.
type Message struct {
	ID             string
	ConversationID uint64
	Sender         common.Address
	CreatedAt      uint64
	Status         uint8
	ContentHandles []fhe.Handle
	Content        string
	ReactionHandle fhe.Handle
	Reaction       Reaction
	Direction      Direction
	Position       Position
	Optimistic     bool
	// Undecryptable is set when some content handles could not be
	// decrypted. Content is left empty rather than partially rendered.
	Undecryptable bool
}

// Profile is a registered user profile.
type Profile struct {
	Wallet    common.Address
	Name      string
	AvatarURL string
	CreatedAt uint64
	Active    bool
}

// ConversationRecord is a conversation as returned by the ledger.
type ConversationRecord struct {
	ID        uint64
	Type      ConversationType
	Creator   common.Address
	Name      string
	Members   []common.Address
	CreatedAt uint64
	Status    uint8
	Deleted   bool
}

// MessageRecord is an encrypted message as returned by the ledger.
type MessageRecord struct {
	ID             uint64
	ConversationID uint64
	Sender         common.Address
	CreatedAt      uint64
	Status         uint8
	Content        []fhe.Handle
	Reaction       fhe.Handle
}

// MessageHeader is the public metadata of a direct or channel message held
// by the messenger contract.
type MessageHeader struct {
	ID        uint64
	Sender    common.Address
	Receiver  common.Address
	Channel   common.Hash
	Timestamp uint64
	Deleted   bool
}
