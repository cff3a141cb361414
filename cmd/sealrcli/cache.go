// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/decryption"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persisted decryption cache",
}

var cacheInspectCmd = &cobra.Command{
	Use:   "inspect [conversation-id]",
	Short: "List the plaintexts cached for a conversation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, closeStore, err := openStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		convID := decryption.DefaultPartition
		if len(args) == 1 {
			convID = args[0]
		}
		entries, updatedAt, err := decryption.LoadEntries(ctx, store, convID)
		if err != nil {
			return err
		}

		handles := make([]fhe.Handle, 0, len(entries))
		for h := range entries {
			handles = append(handles, h)
		}
		slices.SortFunc(handles, func(a, b fhe.Handle) int {
			return bytes.Compare(a[:], b[:])
		})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "conversation %s: %d entries, updated at %d\n", convID, len(entries), updatedAt)
		for _, h := range handles {
			fmt.Fprintf(out, "%s\t%s\n", h.Hex(), entries[h])
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInspectCmd)
}
