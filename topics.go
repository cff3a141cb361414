// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Event topics of the messaging and messenger contracts.
var (
	MessageSentTopic         = eventTopic("MessageSent(uint256,uint256,address)")
	ReactionChangedTopic     = eventTopic("ReactionChanged(uint256,address)")
	ConversationCreatedTopic = eventTopic("ConversationCreated(uint256,uint8)")
	ConversationDeletedTopic = eventTopic("ConversationDeleted(uint256,address)")

	DirectMessageSentTopic = eventTopic("MessageSent(uint256,address,address,bytes32,uint256)")
)

func eventTopic(signature string) common.Hash {
	return common.Hash(crypto.Keccak256Hash([]byte(signature)))
}

// ChannelID derives a channel id from its name.
func ChannelID(name string) common.Hash {
	return common.Hash(crypto.Keccak256Hash([]byte(name)))
}
