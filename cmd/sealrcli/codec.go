// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/luxfi/sealr"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <text>",
	Short: "Split text into plaintext chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		for i, chunk := range sealr.EncodeToChunks(text) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i, chunk.Hex(), chunk.Dec())
		}
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <plaintext>...",
	Short: "Reassemble decimal plaintext chunks into text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunks := make([]*uint256.Int, len(args))
		for i, arg := range args {
			chunk, err := sealr.ParsePlaintext(arg)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i] = chunk
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealr.DecodeChunks(chunks))
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Print the event topics the client subscribes to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "MessageSent\t%s\n", sealr.MessageSentTopic.Hex())
		fmt.Fprintf(out, "ReactionChanged\t%s\n", sealr.ReactionChangedTopic.Hex())
		fmt.Fprintf(out, "ConversationCreated\t%s\n", sealr.ConversationCreatedTopic.Hex())
		fmt.Fprintf(out, "ConversationDeleted\t%s\n", sealr.ConversationDeletedTopic.Hex())
		fmt.Fprintf(out, "DirectMessageSent\t%s\n", sealr.DirectMessageSentTopic.Hex())
		return nil
	},
}
