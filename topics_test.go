// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestKeccakHashes(t *testing.T) {
	tests := []struct {
		name string
		got  common.Hash
		want string
	}{
		{
			name: "erc20 transfer topic",
			got:  eventTopic("Transfer(address,address,uint256)"),
			want: "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		},
		{
			name: "erc20 approval topic",
			got:  eventTopic("Approval(address,address,uint256)"),
			want: "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925",
		},
		{
			name: "empty channel name",
			got:  ChannelID(""),
			want: "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, common.HexToHash(tt.want), tt.got)
		})
	}
}

func TestTopicsDistinct(t *testing.T) {
	require := require.New(t)

	topics := []common.Hash{
		MessageSentTopic,
		ReactionChangedTopic,
		ConversationCreatedTopic,
		ConversationDeletedTopic,
		DirectMessageSentTopic,
	}
	seen := make(map[common.Hash]bool, len(topics))
	for _, topic := range topics {
		require.NotEqual(common.Hash{}, topic)
		require.False(seen[topic], topic.Hex())
		seen[topic] = true
	}
}
