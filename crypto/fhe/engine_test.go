// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testUser     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testSig      = &DecryptionSignature{Signature: []byte{1}}
)

func testChunks(n int) []*uint256.Int {
	chunks := make([]*uint256.Int, n)
	for i := range chunks {
		chunks[i] = uint256.NewInt(uint64(1000 + i))
	}
	return chunks
}

func TestEncryptChunks(t *testing.T) {
	tests := []struct {
		name            string
		numChunks       int
		expectedBatches int
	}{
		{
			name:            "empty",
			numChunks:       0,
			expectedBatches: 0,
		},
		{
			name:            "single partial batch",
			numChunks:       3,
			expectedBatches: 1,
		},
		{
			name:            "exact batch",
			numChunks:       8,
			expectedBatches: 1,
		},
		{
			name:            "three batches",
			numChunks:       20,
			expectedBatches: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			client := NewFakeClient()
			engine := NewEngine(log.NewNoOpLogger(), Ready(client), 0)
			chunks := testChunks(tt.numChunks)

			payload, err := engine.EncryptChunks(context.Background(), testContract, testUser, chunks)
			require.NoError(err)
			require.NoError(payload.Verify())
			require.Len(payload.Ciphertexts, tt.numChunks)
			require.Equal(tt.expectedBatches, client.EncryptCalls())

			if tt.numChunks == 0 {
				return
			}
			pairs := make([]HandleContractPair, len(payload.Ciphertexts))
			for i, h := range payload.Ciphertexts {
				pairs[i] = HandleContractPair{Handle: h, Contract: testContract}
			}
			plain, err := client.UserDecrypt(context.Background(), pairs, testSig)
			require.NoError(err)
			for i, h := range payload.Ciphertexts {
				require.Equal(chunks[i].Dec(), plain[h])
			}
		})
	}
}

func TestEncryptChunksProofPerBatch(t *testing.T) {
	require := require.New(t)

	engine := NewEngine(log.NewNoOpLogger(), Ready(NewFakeClient()), 8)
	payload, err := engine.EncryptChunks(context.Background(), testContract, testUser, testChunks(20))
	require.NoError(err)

	for i := 1; i < 8; i++ {
		require.Equal(payload.Proofs[0], payload.Proofs[i])
	}
	require.NotEqual(payload.Proofs[0], payload.Proofs[8])
	require.Equal(payload.Proofs[16], payload.Proofs[19])
}

func TestEncryptChunksFailure(t *testing.T) {
	require := require.New(t)

	errBoom := errors.New("boom")
	client := NewFakeClient()
	client.EncryptErr = errBoom
	engine := NewEngine(log.NewNoOpLogger(), Ready(client), 8)

	payload, err := engine.EncryptChunks(context.Background(), testContract, testUser, testChunks(20))
	require.ErrorIs(err, ErrEncryptionFailed)
	require.ErrorIs(err, errBoom)
	require.Nil(payload)
}

func TestEncryptChunksNotReady(t *testing.T) {
	require := require.New(t)

	engine := NewEngine(log.NewNoOpLogger(), &steppedInstance{readyAfter: -1}, 8)
	_, err := engine.EncryptChunks(context.Background(), testContract, testUser, testChunks(1))
	require.ErrorIs(err, ErrNotReady)
}

func TestEncryptSingleValue(t *testing.T) {
	require := require.New(t)

	client := NewFakeClient()
	engine := NewEngine(log.NewNoOpLogger(), Ready(client), 8)

	value := uint256.NewInt(0x6e6f6e65)
	enc, err := engine.EncryptSingleValue(context.Background(), testContract, testUser, value)
	require.NoError(err)
	require.NotEmpty(enc.Proof)

	plain, err := client.UserDecrypt(
		context.Background(),
		[]HandleContractPair{{Handle: enc.Ciphertext, Contract: testContract}},
		testSig,
	)
	require.NoError(err)
	require.Equal(value.Dec(), plain[enc.Ciphertext])
}

func TestPrepareQuotedReference(t *testing.T) {
	tests := []struct {
		name        string
		no64        bool
		omitProof   bool
		expectedErr error
	}{
		{
			name: "64-bit builder",
		},
		{
			name: "32-bit fallback",
			no64: true,
		},
		{
			name:        "missing attestation",
			omitProof:   true,
			expectedErr: ErrMissingAttestation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			client := NewFakeClient()
			client.No64 = tt.no64
			client.OmitProof = tt.omitProof
			engine := NewEngine(log.NewNoOpLogger(), Ready(client), 8)

			enc, err := engine.PrepareQuotedReference(context.Background(), testContract, testUser)
			require.ErrorIs(err, tt.expectedErr)
			if tt.expectedErr != nil {
				return
			}
			require.NotEqual(Handle{}, enc.Ciphertext)
			require.NotEmpty(enc.Proof)
		})
	}
}

// steppedInstance becomes ready after readyAfter calls. A negative value
// never becomes ready.
type steppedInstance struct {
	calls      int
	readyAfter int
	err        error
}

func (s *steppedInstance) Client() (Client, Status, error) {
	s.calls++
	if s.readyAfter >= 0 && s.calls > s.readyAfter {
		return NewFakeClient(), StatusReady, nil
	}
	return nil, StatusLoading, s.err
}

func TestWaitReady(t *testing.T) {
	t.Run("ready immediately", func(t *testing.T) {
		require := require.New(t)

		inst := &steppedInstance{}
		client, err := WaitReady(context.Background(), inst, time.Second, 10*time.Millisecond)
		require.NoError(err)
		require.NotNil(client)
		require.Equal(1, inst.calls)
	})
	t.Run("ready after polling", func(t *testing.T) {
		require := require.New(t)

		inst := &steppedInstance{readyAfter: 3}
		client, err := WaitReady(context.Background(), inst, time.Second, 10*time.Millisecond)
		require.NoError(err)
		require.NotNil(client)
		require.Equal(4, inst.calls)
	})
	t.Run("timeout reports status", func(t *testing.T) {
		require := require.New(t)

		inst := &steppedInstance{readyAfter: -1}
		_, err := WaitReady(context.Background(), inst, 50*time.Millisecond, 10*time.Millisecond)
		require.ErrorIs(err, ErrNotReady)

		var notReady *NotReadyError
		require.ErrorAs(err, &notReady)
		require.Equal(StatusLoading, notReady.Status)
		require.Contains(err.Error(), "status=loading")
	})
	t.Run("timeout reports root cause", func(t *testing.T) {
		require := require.New(t)

		errInit := errors.New("relayer unreachable")
		inst := &steppedInstance{readyAfter: -1, err: errInit}
		_, err := WaitReady(context.Background(), inst, 50*time.Millisecond, 10*time.Millisecond)
		require.ErrorIs(err, ErrNotReady)
		require.ErrorIs(err, errInit)
		require.Contains(err.Error(), "relayer unreachable")
	})
	t.Run("caller cancels", func(t *testing.T) {
		require := require.New(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		inst := &steppedInstance{readyAfter: -1}
		_, err := WaitReady(ctx, inst, time.Second, 10*time.Millisecond)
		require.ErrorIs(err, context.Canceled)
		require.NotErrorIs(err, ErrNotReady)
	})
	t.Run("caller deadline", func(t *testing.T) {
		require := require.New(t)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		inst := &steppedInstance{readyAfter: -1}
		_, err := WaitReady(ctx, inst, time.Second, 10*time.Millisecond)
		require.ErrorIs(err, context.DeadlineExceeded)
	})
}

func TestDecryptionSignatureValidity(t *testing.T) {
	require := require.New(t)

	start := time.Unix(1_700_000_000, 0)
	sig := &DecryptionSignature{
		Signature:         []byte{1},
		ContractAddresses: []common.Address{testContract},
		StartTimestamp:    uint64(start.Unix()),
		DurationDays:      1,
	}
	require.True(sig.IsValid(start))
	require.True(sig.IsValid(start.Add(23 * time.Hour)))
	require.False(sig.IsValid(start.Add(24 * time.Hour)))
	require.False(sig.IsValid(start.Add(-time.Second)))
	require.True(sig.Covers(testContract))
	require.False(sig.Covers(testContract, testUser))
}
