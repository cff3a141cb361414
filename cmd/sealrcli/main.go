// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/sealr/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sealr",
	Short: "Confidential messaging client tools",
	Long: `sealr works with messages whose contents are encrypted by an FHE
co-processor and stored on chain as ciphertext handles.

This CLI inspects the string codec, the event topics and the persisted
decryption cache, and runs an end-to-end exchange against in-memory fakes.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(demoCmd)
}

// loadConfig builds the configuration from the root flags, the environment
// and the optional config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return config.Config{}, fmt.Errorf("couldn't configure flags: %w", err)
	}
	cfg, err := config.NewConfig(v)
	if err != nil {
		return config.Config{}, fmt.Errorf("couldn't build config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the root logger, or a silent one when the configured
// level is above info.
func newLogger(cfg config.Config) log.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err == nil && level > zapcore.InfoLevel {
		return log.NewNoOpLogger()
	}
	return log.Root()
}
