// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildFlagSet declares a flag for every configuration key.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("sealr", pflag.ContinueOnError)
	AddFlags(fs)
	return fs
}

// AddFlags declares the configuration flags on fs. Flags left unset do not
// shadow values from the environment or the config file.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a JSON config file")
	fs.String(LogLevelKey, defaultLogLevel, "Log level")
	fs.String(ContractAddressKey, "", "Address of the messaging contract")
	fs.Duration(ReadyTimeoutKey, 0, "How long to wait for the co-processor to become ready")
	fs.Duration(ReadyIntervalKey, 0, "Co-processor readiness poll interval")
	fs.Int(EncryptBatchSizeKey, 0, "Chunks encrypted per input")
	fs.Int(DecryptBatchSizeKey, 0, "Handles decrypted per call")
	fs.Int(PartitionCapacityKey, 0, "Conversations whose plaintexts are kept in memory")
	fs.Uint64(SignatureDurationKey, 0, "Validity of the decryption signature, in days")
	fs.String(SignaturePassphraseKey, "", "Passphrase sealing the stored decryption signature")
	fs.Duration(RefetchIntervalKey, 0, "Minimum interval between conversation list reads")
	fs.Duration(IndexDelayKey, 0, "Wait before reading back an own message")
	fs.Int(PageSizeKey, 0, "Messages per page")
	fs.Duration(InclusionTimeoutKey, 0, "How long to wait for a transaction receipt")
	fs.String(StorageBackendKey, defaultStorageBackend, "Storage backend: memory, badger, nats or postgres")
	fs.String(BadgerDirKey, "", "Badger database directory")
	fs.String(NATSURLKey, "", "NATS server URL")
	fs.String(NATSBucketKey, defaultNATSBucket, "NATS key-value bucket")
	fs.String(PostgresDSNKey, "", "Postgres connection string")
}

// BuildViper builds the viper instance. All keys may be provided by flag,
// by SEALR_ prefixed environment variable or by the optional config file.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Flags are lower-case and hyphenated, env vars upper-case with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				bindErr = errors.Join(bindErr, v.BindPFlag(f.Name, f))
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	filename := v.GetString(ConfigFileKey)
	if filename == "" {
		filename = os.Getenv(ConfigFileEnvKey)
	}
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// BuildConfig constructs the client config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
