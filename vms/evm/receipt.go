// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/utils"
)

const (
	DefaultRPCTimeout       = 10 * time.Second
	DefaultInclusionTimeout = 30 * time.Second
)

var (
	ErrTransactionReverted = errors.New("transaction reverted")
	errReceiptNotFound     = errors.New("receipt not found")
)

// ExtractMessageID returns the message id emitted by the first log of
// receipt whose first topic is topic. The id is the second topic read as an
// unsigned integer, formatted in decimal.
func ExtractMessageID(receipt *types.Receipt, topic common.Hash) (string, error) {
	if receipt != nil {
		for _, l := range receipt.Logs {
			if l == nil || len(l.Topics) < 2 || l.Topics[0] != topic {
				continue
			}
			return l.Topics[1].Big().String(), nil
		}
	}
	return "", sealr.ErrMessageIDNotFound
}

// checkReceipt returns ErrTransactionReverted for a failed receipt.
func checkReceipt(receipt *types.Receipt) error {
	if receipt == nil {
		return errReceiptNotFound
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrTransactionReverted, receipt.TxHash.Hex())
	}
	return nil
}

// ReceiptFetcher is the subset of an RPC client needed to await a receipt.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptWaiter polls for receipts until they appear or the inclusion
// timeout passes.
type ReceiptWaiter struct {
	log              log.Logger
	client           ReceiptFetcher
	rpcTimeout       time.Duration
	inclusionTimeout time.Duration
}

func NewReceiptWaiter(logger log.Logger, client ReceiptFetcher, inclusionTimeout time.Duration) *ReceiptWaiter {
	if inclusionTimeout <= 0 {
		inclusionTimeout = DefaultInclusionTimeout
	}
	return &ReceiptWaiter{
		log:              logger,
		client:           client,
		rpcTimeout:       DefaultRPCTimeout,
		inclusionTimeout: inclusionTimeout,
	}
}

func (w *ReceiptWaiter) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, w.rpcTimeout)
		defer cancel()
		r, err := w.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return err
		}
		if r == nil {
			return errReceiptNotFound
		}
		receipt = r
		return nil
	}
	err := utils.WithRetriesTimeout(ctx, w.log, operation, w.inclusionTimeout, "waitForReceipt")
	if err != nil {
		w.log.Error(
			"Failed to get transaction receipt",
			log.Stringer("txID", txHash),
			log.Err(err),
		)
		return nil, err
	}
	return receipt, nil
}

// Transaction binds a broadcast transaction hash to a ReceiptWaiter.
func (w *ReceiptWaiter) Transaction(txHash common.Hash) sealr.Transaction {
	return &pendingTx{hash: txHash, waiter: w}
}

type pendingTx struct {
	hash   common.Hash
	waiter *ReceiptWaiter
}

func (t *pendingTx) Hash() common.Hash {
	return t.hash
}

func (t *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	return t.waiter.WaitForReceipt(ctx, t.hash)
}
