// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

var (
	_ Client       = (*FakeClient)(nil)
	_ KeyGenerator = (*FakeClient)(nil)

	errUnknownHandle = errors.New("unknown handle")
)

// FakeClient is an in-memory co-processor. Encrypted values are kept in the
// clear and handed back by UserDecrypt. It records calls so tests can assert
// on batching.
type FakeClient struct {
	// EncryptErr fails every Encrypt call when set.
	EncryptErr error
	// FailHandles fails any UserDecrypt call that includes one of them.
	FailHandles map[Handle]bool
	// OmitProof makes Encrypt return an empty input proof.
	OmitProof bool
	// No64 makes builders lack 64-bit input support.
	No64 bool

	lock         sync.Mutex
	nonce        uint64
	values       map[Handle]*uint256.Int
	encryptCalls int
	decryptCalls [][]Handle
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		FailHandles: make(map[Handle]bool),
		values:      make(map[Handle]*uint256.Int),
	}
}

func (f *FakeClient) CreateEncryptedInput(contract, user common.Address) InputBuilder {
	b := &fakeBuilder{client: f, contract: contract, user: user}
	if f.No64 {
		return fakeBuilder32{b}
	}
	return b
}

func (f *FakeClient) UserDecrypt(_ context.Context, pairs []HandleContractPair, sig *DecryptionSignature) (map[Handle]string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	handles := make([]Handle, len(pairs))
	for i, p := range pairs {
		handles[i] = p.Handle
	}
	f.decryptCalls = append(f.decryptCalls, handles)

	if sig == nil || len(sig.Signature) == 0 {
		return nil, ErrInvalidSignature
	}
	out := make(map[Handle]string, len(pairs))
	for _, p := range pairs {
		if f.FailHandles[p.Handle] {
			return nil, fmt.Errorf("decrypt %s: injected failure", p.Handle.Hex())
		}
		v, ok := f.values[p.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownHandle, p.Handle.Hex())
		}
		out[p.Handle] = v.Dec()
	}
	return out, nil
}

func (*FakeClient) GenerateKeypair() ([]byte, []byte, error) {
	pub := make([]byte, 32)
	priv := make([]byte, 32)
	if _, err := rand.Read(pub); err != nil {
		return nil, nil, err
	}
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// Store registers value under a fresh handle, as if it had been encrypted
// by someone else.
func (f *FakeClient) Store(contract, user common.Address, value *uint256.Int) Handle {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.storeLocked(contract, user, value)
}

func (f *FakeClient) storeLocked(contract, user common.Address, value *uint256.Int) Handle {
	f.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], f.nonce)
	h := common.Hash(crypto.Keccak256Hash(contract.Bytes(), user.Bytes(), n[:]))
	f.values[h] = new(uint256.Int).Set(value)
	return h
}

// EncryptCalls returns the number of Encrypt calls made.
func (f *FakeClient) EncryptCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.encryptCalls
}

// DecryptCalls returns the handles passed to each UserDecrypt call.
func (f *FakeClient) DecryptCalls() [][]Handle {
	f.lock.Lock()
	defer f.lock.Unlock()
	calls := make([][]Handle, len(f.decryptCalls))
	copy(calls, f.decryptCalls)
	return calls
}

type fakeBuilder struct {
	client   *FakeClient
	contract common.Address
	user     common.Address
	values   []*uint256.Int
}

func (b *fakeBuilder) Add256(v *uint256.Int) {
	b.values = append(b.values, new(uint256.Int).Set(v))
}

func (b *fakeBuilder) Add64(v uint64) {
	b.values = append(b.values, uint256.NewInt(v))
}

func (b *fakeBuilder) Add32(v uint32) {
	b.values = append(b.values, uint256.NewInt(uint64(v)))
}

func (b *fakeBuilder) Encrypt(ctx context.Context) (*EncryptedInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := b.client
	f.lock.Lock()
	defer f.lock.Unlock()

	f.encryptCalls++
	if f.EncryptErr != nil {
		return nil, f.EncryptErr
	}
	enc := &EncryptedInput{Handles: make([]Handle, len(b.values))}
	proofInput := make([][]byte, 0, len(b.values))
	for i, v := range b.values {
		h := f.storeLocked(b.contract, b.user, v)
		enc.Handles[i] = h
		proofInput = append(proofInput, h.Bytes())
	}
	if !f.OmitProof {
		enc.InputProof = crypto.Keccak256(proofInput...)
	}
	return enc, nil
}

// fakeBuilder32 hides Add64.
type fakeBuilder32 struct {
	b *fakeBuilder
}

func (b fakeBuilder32) Add256(v *uint256.Int) { b.b.Add256(v) }

func (b fakeBuilder32) Add32(v uint32) { b.b.Add32(v) }

func (b fakeBuilder32) Encrypt(ctx context.Context) (*EncryptedInput, error) {
	return b.b.Encrypt(ctx)
}
