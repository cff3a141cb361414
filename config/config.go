// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/sealr/conversation"
	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/decryption"
	"github.com/luxfi/sealr/signer"
	"github.com/luxfi/sealr/vms/evm"
)

// Storage backends
const (
	MemoryBackend   = "memory"
	BadgerBackend   = "badger"
	NATSBackend     = "nats"
	PostgresBackend = "postgres"
)

const (
	defaultLogLevel       = "info"
	defaultStorageBackend = MemoryBackend
	defaultNATSBucket     = "sealr"
)

var (
	errInvalidContract    = errors.New("invalid contract address")
	errInvalidBackend     = errors.New("invalid storage backend")
	errMissingBadgerDir   = errors.New("badger storage requires a directory")
	errMissingNATSURL     = errors.New("nats storage requires a server URL")
	errMissingDSN         = errors.New("postgres storage requires a DSN")
	errNonPositiveSetting = errors.New("setting must be positive")
)

// Config is the client configuration. Zero durations and sizes fall back to
// the package defaults of the component they configure.
type Config struct {
	LogLevel        string `mapstructure:"log-level"`
	ContractAddress string `mapstructure:"contract-address"`

	ReadyTimeout        time.Duration `mapstructure:"ready-timeout"`
	ReadyInterval       time.Duration `mapstructure:"ready-interval"`
	EncryptBatchSize    int           `mapstructure:"encrypt-batch-size"`
	DecryptBatchSize    int           `mapstructure:"decrypt-batch-size"`
	PartitionCapacity   int           `mapstructure:"partition-capacity"`
	SignatureDuration   uint64        `mapstructure:"signature-duration-days"`
	SignaturePassphrase string        `mapstructure:"signature-passphrase"`

	RefetchInterval  time.Duration `mapstructure:"refetch-interval"`
	IndexDelay       time.Duration `mapstructure:"index-delay"`
	PageSize         int           `mapstructure:"page-size"`
	InclusionTimeout time.Duration `mapstructure:"inclusion-timeout"`

	StorageBackend string `mapstructure:"storage-backend"`
	BadgerDir      string `mapstructure:"badger-dir"`
	NATSURL        string `mapstructure:"nats-url"`
	NATSBucket     string `mapstructure:"nats-bucket"`
	PostgresDSN    string `mapstructure:"postgres-dsn"`
}

func (c *Config) Validate() error {
	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("%w: %q", errInvalidContract, c.ContractAddress)
	}
	for name, v := range map[string]int64{
		EncryptBatchSizeKey:  int64(c.EncryptBatchSize),
		DecryptBatchSizeKey:  int64(c.DecryptBatchSize),
		PartitionCapacityKey: int64(c.PartitionCapacity),
		PageSizeKey:          int64(c.PageSize),
		ReadyTimeoutKey:      int64(c.ReadyTimeout),
		ReadyIntervalKey:     int64(c.ReadyInterval),
		RefetchIntervalKey:   int64(c.RefetchInterval),
		InclusionTimeoutKey:  int64(c.InclusionTimeout),
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s", errNonPositiveSetting, name)
		}
	}
	if c.SignatureDuration == 0 {
		return fmt.Errorf("%w: %s", errNonPositiveSetting, SignatureDurationKey)
	}
	switch c.StorageBackend {
	case MemoryBackend:
	case BadgerBackend:
		if c.BadgerDir == "" {
			return errMissingBadgerDir
		}
	case NATSBackend:
		if c.NATSURL == "" {
			return errMissingNATSURL
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return errMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", errInvalidBackend, c.StorageBackend)
	}
	return nil
}

// Contract returns the configured contract address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

func (c *Config) DecryptionConfig() decryption.Config {
	return decryption.Config{
		BatchSize:         c.DecryptBatchSize,
		PartitionCapacity: c.PartitionCapacity,
	}
}

func (c *Config) SubmitterConfig() evm.Config {
	return evm.Config{
		Contract:      c.Contract(),
		ReadyTimeout:  c.ReadyTimeout,
		ReadyInterval: c.ReadyInterval,
	}
}

func (c *Config) ConversationConfig() conversation.Config {
	return conversation.Config{
		Contract:        c.Contract(),
		RefetchInterval: c.RefetchInterval,
		IndexDelay:      c.IndexDelay,
		PageSize:        c.PageSize,
	}
}

// defaults lists the default of every key.
var defaults = map[string]any{
	LogLevelKey:          defaultLogLevel,
	ReadyTimeoutKey:      fhe.DefaultReadyTimeout,
	ReadyIntervalKey:     fhe.DefaultReadyInterval,
	EncryptBatchSizeKey:  fhe.DefaultEncryptBatchSize,
	DecryptBatchSizeKey:  decryption.DefaultBatchSize,
	PartitionCapacityKey: decryption.DefaultPartitionCapacity,
	SignatureDurationKey: signer.DefaultDurationDays,
	RefetchIntervalKey:   conversation.DefaultRefetchInterval,
	IndexDelayKey:        conversation.DefaultIndexDelay,
	PageSizeKey:          conversation.DefaultPageSize,
	InclusionTimeoutKey:  evm.DefaultInclusionTimeout,
	StorageBackendKey:    defaultStorageBackend,
	NATSBucketKey:        defaultNATSBucket,
}
