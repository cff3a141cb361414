// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Environment variable keys
	ConfigFileEnvKey = "SEALR_CONFIG_FILE"
	EnvPrefix        = "SEALR"

	// Top-level configuration keys
	LogLevelKey        = "log-level"
	ContractAddressKey = "contract-address"

	// Co-processor keys
	ReadyTimeoutKey        = "ready-timeout"
	ReadyIntervalKey       = "ready-interval"
	EncryptBatchSizeKey    = "encrypt-batch-size"
	DecryptBatchSizeKey    = "decrypt-batch-size"
	PartitionCapacityKey   = "partition-capacity"
	SignatureDurationKey   = "signature-duration-days"
	SignaturePassphraseKey = "signature-passphrase"

	// Conversation keys
	RefetchIntervalKey  = "refetch-interval"
	IndexDelayKey       = "index-delay"
	PageSizeKey         = "page-size"
	InclusionTimeoutKey = "inclusion-timeout"

	// Storage keys
	StorageBackendKey = "storage-backend"
	BadgerDirKey      = "badger-dir"
	NATSURLKey        = "nats-url"
	NATSBucketKey     = "nats-bucket"
	PostgresDSNKey    = "postgres-dsn"
)
