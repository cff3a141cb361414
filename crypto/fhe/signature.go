// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"time"

	"github.com/luxfi/geth/common"
)

const secondsPerDay = 24 * 60 * 60

// DecryptionSignature authorizes the decryption service to re-encrypt
// handles of ContractAddresses for UserAddress under PublicKey, for
// DurationDays starting at StartTimestamp (unix seconds).
type DecryptionSignature struct {
	PrivateKey        []byte
	PublicKey         []byte
	Signature         []byte
	ContractAddresses []common.Address
	UserAddress       common.Address
	StartTimestamp    uint64
	DurationDays      uint64
}

// ExpiresAt returns the end of the validity window.
func (s *DecryptionSignature) ExpiresAt() time.Time {
	return time.Unix(int64(s.StartTimestamp+s.DurationDays*secondsPerDay), 0)
}

// IsValid reports whether now falls inside the validity window.
func (s *DecryptionSignature) IsValid(now time.Time) bool {
	if s == nil || len(s.Signature) == 0 {
		return false
	}
	return now.Unix() >= int64(s.StartTimestamp) && now.Before(s.ExpiresAt())
}

// Covers reports whether every contract is in the signed contract set.
func (s *DecryptionSignature) Covers(contracts ...common.Address) bool {
	for _, c := range contracts {
		found := false
		for _, signed := range s.ContractAddresses {
			if signed == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
