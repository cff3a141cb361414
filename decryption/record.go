// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package decryption

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/storage"
)

// cacheStore is the storage namespace of cache partitions.
const cacheStore = "conversationCache"

// record is the persisted form of one partition.
type record struct {
	ID        string
	Entries   []recordEntry
	UpdatedAt uint64
}

type recordEntry struct {
	Handle    fhe.Handle
	Plaintext string
}

func encodeRecord(id string, entries map[fhe.Handle]string, updatedAt uint64) ([]byte, error) {
	rec := record{
		ID:        id,
		Entries:   make([]recordEntry, 0, len(entries)),
		UpdatedAt: updatedAt,
	}
	for h, p := range entries {
		rec.Entries = append(rec.Entries, recordEntry{Handle: h, Plaintext: p})
	}
	sort.Slice(rec.Entries, func(i, j int) bool {
		return bytes.Compare(rec.Entries[i].Handle[:], rec.Entries[j].Handle[:]) < 0
	})
	return rlp.EncodeToBytes(&rec)
}

func decodeRecord(b []byte) (*record, error) {
	rec := new(record)
	if err := rlp.DecodeBytes(b, rec); err != nil {
		return nil, fmt.Errorf("failed to decode cache record: %w", err)
	}
	return rec, nil
}

// LoadEntries reads the persisted partition of conversationID from s.
func LoadEntries(ctx context.Context, s storage.Storage, conversationID string) (map[fhe.Handle]string, uint64, error) {
	b, err := s.Get(ctx, cacheStore, partitionKey(conversationID))
	if err != nil {
		return nil, 0, err
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return nil, 0, err
	}
	entries := make(map[fhe.Handle]string, len(rec.Entries))
	for _, e := range rec.Entries {
		entries[e.Handle] = e.Plaintext
	}
	return entries, rec.UpdatedAt, nil
}

func partitionKey(conversationID string) string {
	if conversationID == "" {
		return DefaultPartition
	}
	return conversationID
}
