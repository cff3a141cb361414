// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/luxfi/geth/rlp"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/storage"
)

const (
	signatureStore = "decryptionSignatures"
	saltLen        = 16
)

var errSealedTooShort = errors.New("sealed record too short")

// SealedStore persists decryption signatures encrypted under a key derived
// from a passphrase. The record key is bound as associated data.
type SealedStore struct {
	storage    storage.Storage
	passphrase []byte
}

func NewSealedStore(s storage.Storage, passphrase []byte) *SealedStore {
	return &SealedStore{
		storage:    s,
		passphrase: append([]byte(nil), passphrase...),
	}
}

func (s *SealedStore) Save(ctx context.Context, key string, sig *fhe.DecryptionSignature) error {
	plain, err := rlp.EncodeToBytes(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signature: %w", err)
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt))
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	blob := make([]byte, 0, saltLen+len(nonce)+len(plain)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plain, []byte(key))
	return s.storage.Put(ctx, signatureStore, key, blob)
}

func (s *SealedStore) Load(ctx context.Context, key string) (*fhe.DecryptionSignature, error) {
	blob, err := s.storage.Get(ctx, signatureStore, key)
	if err != nil {
		return nil, err
	}
	if len(blob) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, errSealedTooShort
	}
	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, blob[saltLen+chacha20poly1305.NonceSizeX:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed signature: %w", err)
	}
	sig := new(fhe.DecryptionSignature)
	if err := rlp.DecodeBytes(plain, sig); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return sig, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}
