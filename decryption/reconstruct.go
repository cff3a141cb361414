// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package decryption

import (
	"bytes"
	"strconv"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/crypto/fhe"
)

// Handles returns every content and reaction handle of records, in order,
// skipping zero handles.
func Handles(records []sealr.MessageRecord) []fhe.Handle {
	var handles []fhe.Handle
	for _, r := range records {
		for _, h := range r.Content {
			if h != (fhe.Handle{}) {
				handles = append(handles, h)
			}
		}
		if r.Reaction != (fhe.Handle{}) {
			handles = append(handles, r.Reaction)
		}
	}
	return handles
}

// Reconstruct builds messages from on-chain records and the plaintexts
// resolved for their handles. If records reference handles but nothing was
// resolved, it returns sealr.ErrDecryptionUnavailable. A message with any
// unresolved content handle is marked Undecryptable with empty content.
func Reconstruct(
	records []sealr.MessageRecord,
	resolved map[fhe.Handle]string,
	self common.Address,
) ([]sealr.Message, error) {
	if len(resolved) == 0 && len(Handles(records)) > 0 {
		return nil, sealr.ErrDecryptionUnavailable
	}

	msgs := make([]sealr.Message, len(records))
	for i, r := range records {
		msg := sealr.Message{
			ID:             strconv.FormatUint(r.ID, 10),
			ConversationID: r.ConversationID,
			Sender:         r.Sender,
			CreatedAt:      r.CreatedAt,
			Status:         r.Status,
			ContentHandles: r.Content,
			ReactionHandle: r.Reaction,
			Reaction:       sealr.ReactionNone,
			Direction:      sealr.Incoming,
		}
		if r.Sender == self {
			msg.Direction = sealr.Outgoing
		}
		content, ok := decodeContent(r.Content, resolved)
		if ok {
			msg.Content = content
		} else {
			msg.Undecryptable = true
		}
		msg.Reaction = decodeReaction(r.Reaction, resolved)
		msgs[i] = msg
	}
	return msgs, nil
}

func decodeContent(handles []fhe.Handle, resolved map[fhe.Handle]string) (string, bool) {
	var buf bytes.Buffer
	for _, h := range handles {
		if h == (fhe.Handle{}) {
			continue
		}
		plaintext, ok := resolved[h]
		if !ok {
			return "", false
		}
		b, err := sealr.DecodePlaintext(plaintext)
		if err != nil {
			return "", false
		}
		buf.Write(b)
	}
	return buf.String(), true
}

// decodeReaction falls back to ReactionNone for missing or unknown values.
func decodeReaction(h fhe.Handle, resolved map[fhe.Handle]string) sealr.Reaction {
	plaintext, ok := resolved[h]
	if h == (fhe.Handle{}) || !ok {
		return sealr.ReactionNone
	}
	b, err := sealr.DecodePlaintext(plaintext)
	if err != nil {
		return sealr.ReactionNone
	}
	reaction, err := sealr.ParseReaction(string(b))
	if err != nil {
		return sealr.ReactionNone
	}
	return reaction
}
