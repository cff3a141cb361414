// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultEncryptBatchSize is the number of chunks encrypted per input.
const DefaultEncryptBatchSize = 8

// Engine turns chunk sequences and single values into co-processor
// ciphertexts.
type Engine struct {
	log       log.Logger
	instance  Instance
	batchSize int
}

// NewEngine returns an Engine that encrypts at most batchSize chunks per
// input. A non-positive batchSize selects DefaultEncryptBatchSize.
func NewEngine(logger log.Logger, instance Instance, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultEncryptBatchSize
	}
	return &Engine{
		log:       logger,
		instance:  instance,
		batchSize: batchSize,
	}
}

// WaitReady blocks until the co-processor instance is usable.
func (e *Engine) WaitReady(ctx context.Context, timeout, interval time.Duration) (Client, error) {
	return WaitReady(ctx, e.instance, timeout, interval)
}

func (e *Engine) client() (Client, error) {
	client, status, err := e.instance.Client()
	if client == nil || status != StatusReady {
		return nil, &NotReadyError{Status: status, Err: err}
	}
	return client, nil
}

// EncryptChunks encrypts chunks for contract on behalf of signer. Chunks are
// grouped into batches that are encrypted concurrently; the payload preserves
// chunk order and repeats each batch proof once per handle in the batch. Any
// batch failure fails the whole call.
func (e *Engine) EncryptChunks(
	ctx context.Context,
	contract common.Address,
	signer common.Address,
	chunks []*uint256.Int,
) (*EncryptedPayload, error) {
	payload := &EncryptedPayload{
		Ciphertexts: make([]Handle, 0, len(chunks)),
		Proofs:      make([][]byte, 0, len(chunks)),
	}
	if len(chunks) == 0 {
		return payload, nil
	}
	client, err := e.client()
	if err != nil {
		return nil, err
	}

	numBatches := (len(chunks) + e.batchSize - 1) / e.batchSize
	results := make([]*EncryptedInput, numBatches)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numBatches; i++ {
		batch := chunks[i*e.batchSize : min((i+1)*e.batchSize, len(chunks))]
		g.Go(func() error {
			builder := client.CreateEncryptedInput(contract, signer)
			for _, c := range batch {
				builder.Add256(c)
			}
			enc, err := builder.Encrypt(gctx)
			if err != nil {
				return fmt.Errorf("%w: batch %d: %w", ErrEncryptionFailed, i, err)
			}
			if len(enc.Handles) != len(batch) {
				return fmt.Errorf("%w: batch %d: got %d, want %d",
					ErrHandleCountMismatch, i, len(enc.Handles), len(batch))
			}
			results[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warn(
			"Failed to encrypt chunks",
			zap.Int("numChunks", len(chunks)),
			zap.Int("numBatches", numBatches),
			log.Err(err),
		)
		return nil, err
	}

	for _, enc := range results {
		for _, h := range enc.Handles {
			payload.Ciphertexts = append(payload.Ciphertexts, h)
			payload.Proofs = append(payload.Proofs, enc.InputProof)
		}
	}
	e.log.Debug(
		"Encrypted chunks",
		zap.Int("numChunks", len(chunks)),
		zap.Int("numBatches", numBatches),
	)
	return payload, nil
}

// EncryptSingleValue encrypts one chunk-sized value with its own proof.
func (e *Engine) EncryptSingleValue(
	ctx context.Context,
	contract common.Address,
	signer common.Address,
	value *uint256.Int,
) (*EncryptedValue, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	builder := client.CreateEncryptedInput(contract, signer)
	builder.Add256(value)
	enc, err := builder.Encrypt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	if len(enc.Handles) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", ErrHandleCountMismatch, len(enc.Handles))
	}
	return &EncryptedValue{
		Ciphertext: enc.Handles[0],
		Proof:      enc.InputProof,
	}, nil
}

// PrepareQuotedReference encrypts a zero quoted-message reference. The
// resulting handle and attestation accompany prepared sends. A 64-bit input
// is used when the builder supports it, a 32-bit one otherwise.
func (e *Engine) PrepareQuotedReference(
	ctx context.Context,
	contract common.Address,
	signer common.Address,
) (*EncryptedValue, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	builder := client.CreateEncryptedInput(contract, signer)
	if b64, ok := builder.(Uint64Builder); ok {
		b64.Add64(0)
	} else {
		builder.Add32(0)
	}
	enc, err := builder.Encrypt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	if len(enc.Handles) == 0 {
		return nil, fmt.Errorf("%w: got 0, want 1", ErrHandleCountMismatch)
	}
	if len(enc.InputProof) == 0 {
		return nil, ErrMissingAttestation
	}
	return &EncryptedValue{
		Ciphertext: enc.Handles[0],
		Proof:      enc.InputProof,
	}, nil
}
