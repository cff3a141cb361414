// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/luxfi/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/config"
	"github.com/luxfi/sealr/decryption"
	"github.com/luxfi/sealr/storage"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestEncodeDecode(t *testing.T) {
	require := require.New(t)

	text := "a message that spans more than one thirty-one byte chunk"
	lines := strings.Split(strings.TrimSpace(execute(t, "encode", text)), "\n")
	require.Len(lines, 2)

	args := []string{"decode"}
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		require.Len(fields, 3)
		args = append(args, fields[2])
	}
	require.Equal(text+"\n", execute(t, args...))
}

func TestTopics(t *testing.T) {
	out := execute(t, "topics")
	require.Contains(t, out, sealr.MessageSentTopic.Hex())
	require.Contains(t, out, sealr.DirectMessageSentTopic.Hex())
}

func TestDemo(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	cfg, err := config.BuildConfig(viper.New())
	require.NoError(err)
	cfg.ContractAddress = "0x0000000000000000000000000000000000005ea1"
	cfg.IndexDelay = 0
	cfg.SignaturePassphrase = "correct horse"
	require.NoError(cfg.Validate())

	store := storage.NewMemory()
	var out bytes.Buffer
	require.NoError(runDemo(ctx, log.NewNoOpLogger(), cfg, store, "hi bob", &out))

	require.Contains(out.String(), "alice sees conversation 1 with bob")
	require.Contains(out.String(), "hi bob")
	require.Contains(out.String(), "alice's inbox holds 1 message(s)")

	entries, _, err := decryption.LoadEntries(ctx, store, "1")
	require.NoError(err)
	require.NotEmpty(entries)
}
