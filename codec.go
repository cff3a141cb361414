// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ChunkBytes is the number of plaintext bytes packed into one 256-bit chunk.
// One byte of headroom keeps every chunk strictly below the field limit.
const ChunkBytes = 31

// EncodeToChunks splits the UTF-8 bytes of text into ChunkBytes-sized groups
// and reads each group as a big-endian integer. The empty string encodes to
// zero chunks.
//
// Groups are cut on byte boundaries, not character boundaries, so a
// multi-byte character may straddle two chunks. DecodeChunks reassembles at
// the byte level, which restores such characters.
func EncodeToChunks(text string) []*uint256.Int {
	b := []byte(text)
	chunks := make([]*uint256.Int, 0, (len(b)+ChunkBytes-1)/ChunkBytes)
	for i := 0; i < len(b); i += ChunkBytes {
		end := min(i+ChunkBytes, len(b))
		chunks = append(chunks, new(uint256.Int).SetBytes(b[i:end]))
	}
	return chunks
}

// DecodeChunk converts a chunk back into bytes. The hex form of the value is
// left-padded to an even number of digits before decoding, so a zero value
// decodes to a single NUL byte.
//
// Leading NUL bytes of the original group are not recoverable.
func DecodeChunk(chunk *uint256.Int) []byte {
	digits := strings.TrimPrefix(chunk.Hex(), "0x")
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	// uint256 always renders valid hex.
	b, _ := hex.DecodeString(digits)
	return b
}

// DecodeChunks concatenates the bytes of every chunk in order and returns
// them as a string.
func DecodeChunks(chunks []*uint256.Int) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.Write(DecodeChunk(c))
	}
	return sb.String()
}

// EncodeValue encodes a short string into a single chunk. It is used for
// fields that are always encrypted as one value, such as reactions.
func EncodeValue(value string) (*uint256.Int, error) {
	if len(value) > 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(value))
	}
	return new(uint256.Int).SetBytes([]byte(value)), nil
}

// ParsePlaintext parses the decimal clear value returned by the decryption
// service.
func ParsePlaintext(plaintext string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPlaintext, plaintext, err)
	}
	return v, nil
}

// DecodePlaintext parses a decimal clear value and decodes it as one chunk.
func DecodePlaintext(plaintext string) ([]byte, error) {
	v, err := ParsePlaintext(plaintext)
	if err != nil {
		return nil, err
	}
	return DecodeChunk(v), nil
}
