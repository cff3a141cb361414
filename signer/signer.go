// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/storage"
)

// DefaultDurationDays is the validity window of a new signature.
const DefaultDurationDays = 365

var (
	ErrNoContracts     = errors.New("no contracts to authorize")
	ErrSignerMismatch  = errors.New("signature was not produced by the user")
	errInvalidDuration = errors.New("duration must be positive")
)

// Provider returns a decryption signature covering a set of contracts.
type Provider interface {
	LoadOrSign(ctx context.Context, contracts []common.Address) (*fhe.DecryptionSignature, error)
}

var _ Provider = (*LocalProvider)(nil)

// LocalProvider signs decryption authorizations with a local account key.
// Signatures are reused for their validity window, from memory first and
// then from the sealed store.
type LocalProvider struct {
	log          log.Logger
	key          *ecdsa.PrivateKey
	address      common.Address
	keys         fhe.KeyGenerator
	sealed       *SealedStore
	durationDays uint64
	now          func() time.Time

	lock   sync.Mutex
	cached map[common.Hash]*fhe.DecryptionSignature
}

// NewLocalProvider returns a provider signing as key. sealed may be nil to
// keep signatures in memory only.
func NewLocalProvider(
	logger log.Logger,
	key *ecdsa.PrivateKey,
	keys fhe.KeyGenerator,
	sealed *SealedStore,
	durationDays uint64,
) (*LocalProvider, error) {
	if durationDays == 0 {
		return nil, errInvalidDuration
	}
	address := common.Address(crypto.PubkeyToAddress(key.PublicKey))
	return &LocalProvider{
		log:          logger.With(zap.String("user", address.Hex())),
		key:          key,
		address:      address,
		keys:         keys,
		sealed:       sealed,
		durationDays: durationDays,
		now:          time.Now,
		cached:       make(map[common.Hash]*fhe.DecryptionSignature),
	}, nil
}

// Address is the account the provider signs for.
func (p *LocalProvider) Address() common.Address {
	return p.address
}

func (p *LocalProvider) LoadOrSign(ctx context.Context, contracts []common.Address) (*fhe.DecryptionSignature, error) {
	contracts = normalize(contracts)
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}
	key := cacheKey(p.address, contracts)
	now := p.now()

	p.lock.Lock()
	defer p.lock.Unlock()

	if sig, ok := p.cached[key]; ok && sig.IsValid(now) {
		return sig, nil
	}

	if p.sealed != nil {
		sig, err := p.sealed.Load(ctx, key.Hex())
		switch {
		case err == nil && sig.UserAddress == p.address && sig.IsValid(now):
			p.cached[key] = sig
			return sig, nil
		case err == nil:
			p.log.Debug("Stored decryption signature expired")
		case !errors.Is(err, storage.ErrNotFound):
			p.log.Warn("Failed to load stored decryption signature", log.Err(err))
		}
	}

	sig, err := p.sign(contracts, now)
	if err != nil {
		return nil, err
	}
	p.cached[key] = sig
	if p.sealed != nil {
		if err := p.sealed.Save(ctx, key.Hex(), sig); err != nil {
			p.log.Warn("Failed to store decryption signature", log.Err(err))
		}
	}
	p.log.Info(
		"Signed decryption authorization",
		zap.Int("numContracts", len(contracts)),
		zap.Time("expiresAt", sig.ExpiresAt()),
	)
	return sig, nil
}

func (p *LocalProvider) sign(contracts []common.Address, now time.Time) (*fhe.DecryptionSignature, error) {
	pub, priv, err := p.keys.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	sig := &fhe.DecryptionSignature{
		PrivateKey:        priv,
		PublicKey:         pub,
		ContractAddresses: contracts,
		UserAddress:       p.address,
		StartTimestamp:    uint64(now.Unix()),
		DurationDays:      p.durationDays,
	}
	sig.Signature, err = crypto.Sign(Digest(sig), p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	return sig, nil
}

// Digest is the hash signed by the user to authorize sig.
func Digest(sig *fhe.DecryptionSignature) []byte {
	var buf bytes.Buffer
	buf.Write(sig.PublicKey)
	for _, c := range sig.ContractAddresses {
		buf.Write(c.Bytes())
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], sig.StartTimestamp)
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], sig.DurationDays)
	buf.Write(n[:])
	return crypto.Keccak256(buf.Bytes())
}

// Verify checks that sig was signed by its UserAddress.
func Verify(sig *fhe.DecryptionSignature) error {
	pub, err := crypto.SigToPub(Digest(sig), sig.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", fhe.ErrInvalidSignature, err)
	}
	if common.Address(crypto.PubkeyToAddress(*pub)) != sig.UserAddress {
		return ErrSignerMismatch
	}
	return nil
}

func normalize(contracts []common.Address) []common.Address {
	out := make([]common.Address, 0, len(contracts))
	seen := make(map[common.Address]struct{}, len(contracts))
	for _, c := range contracts {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func cacheKey(user common.Address, contracts []common.Address) common.Hash {
	parts := make([][]byte, 0, len(contracts)+1)
	parts = append(parts, user.Bytes())
	for _, c := range contracts {
		parts = append(parts, c.Bytes())
	}
	return common.Hash(crypto.Keccak256Hash(parts...))
}
