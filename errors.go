// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import "errors"

var (
	// ErrValueTooLarge is returned when a single value does not fit in one
	// 256-bit chunk.
	ErrValueTooLarge = errors.New("value exceeds 256 bits")

	// ErrInvalidPlaintext is returned when a decrypted clear value is not a
	// decimal integer.
	ErrInvalidPlaintext = errors.New("invalid plaintext")

	// ErrDecryptionUnavailable is returned when none of a non-empty set of
	// handles could be decrypted.
	ErrDecryptionUnavailable = errors.New("decryption unavailable")

	// ErrMessageIDNotFound is returned when a confirmed receipt carries no
	// message-sent log.
	ErrMessageIDNotFound = errors.New("message ID not found in transaction receipt")

	ErrNoActiveConversation = errors.New("no active conversation")
	ErrEmptyMessage         = errors.New("empty message")
	ErrInvalidRecipient     = errors.New("invalid recipient address")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrUnknownReaction      = errors.New("unknown reaction")
	ErrNameTaken            = errors.New("profile name already taken")
	ErrProfileNotFound      = errors.New("profile not found")
)
