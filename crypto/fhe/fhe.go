// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe wraps the FHE co-processor client used to encrypt message
// chunks and to decrypt ciphertext handles for an authorized user.
package fhe

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Handle is an opaque 32-byte reference to a ciphertext held by the
// co-processor.
type Handle = common.Hash

// InputBuilder accumulates plaintext values for one encrypted input. All
// values added to a builder share a single proof.
type InputBuilder interface {
	Add256(v *uint256.Int)
	Add32(v uint32)
	// Encrypt returns one handle per added value plus the input proof.
	Encrypt(ctx context.Context) (*EncryptedInput, error)
}

// Uint64Builder is implemented by builders that support 64-bit inputs.
type Uint64Builder interface {
	InputBuilder
	Add64(v uint64)
}

// EncryptedInput is the co-processor's answer to InputBuilder.Encrypt.
type EncryptedInput struct {
	Handles    []Handle
	InputProof []byte
}

// HandleContractPair scopes a handle to the contract that owns it.
type HandleContractPair struct {
	Handle   Handle
	Contract common.Address
}

// Client is the subset of the co-processor SDK used by sealr.
type Client interface {
	// CreateEncryptedInput returns a builder bound to (contract, user).
	CreateEncryptedInput(contract, user common.Address) InputBuilder

	// UserDecrypt decrypts pairs on behalf of sig's user. The result maps
	// each handle to its clear value as a decimal string. Handles the
	// service could not decrypt are absent from the result.
	UserDecrypt(ctx context.Context, pairs []HandleContractPair, sig *DecryptionSignature) (map[Handle]string, error)
}

// KeyGenerator creates the re-encryption keypair bound into a
// DecryptionSignature.
type KeyGenerator interface {
	GenerateKeypair() (publicKey []byte, privateKey []byte, err error)
}

// EncryptedPayload is the chunked ciphertext of a message body. Proofs[i]
// attests Ciphertexts[i].
type EncryptedPayload struct {
	Ciphertexts []Handle
	Proofs      [][]byte
}

// Verify checks that every ciphertext has a proof.
func (p *EncryptedPayload) Verify() error {
	if len(p.Ciphertexts) != len(p.Proofs) {
		return fmt.Errorf("%w: %d ciphertexts, %d proofs", ErrPayloadMismatch, len(p.Ciphertexts), len(p.Proofs))
	}
	return nil
}

// EncryptedValue is a single ciphertext with its proof.
type EncryptedValue struct {
	Ciphertext Handle
	Proof      []byte
}

var (
	ErrInvalidCiphertext   = errors.New("invalid ciphertext")
	ErrPayloadMismatch     = errors.New("ciphertext and proof counts differ")
	ErrHandleCountMismatch = errors.New("unexpected number of handles")
	ErrEncryptionFailed    = errors.New("encryption failed")
	ErrMissingAttestation  = errors.New("encryption returned no attestation")
	ErrNotReady            = errors.New("fhe instance not ready")
	ErrInvalidSignature    = errors.New("invalid decryption signature")
)
