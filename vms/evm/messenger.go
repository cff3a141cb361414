// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"strconv"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
)

// InboxMessage is a messenger message with its raw content.
type InboxMessage struct {
	ID       string
	Sender   common.Address
	Receiver common.Address
	Channel  common.Hash
	Content  []byte
	// TimestampMilli is the header timestamp in milliseconds.
	TimestampMilli uint64
	Deleted        bool
}

// Reader pages through messenger inboxes and channels.
type Reader struct {
	log       log.Logger
	messenger sealr.Messenger
}

func NewReader(logger log.Logger, messenger sealr.Messenger) *Reader {
	return &Reader{log: logger, messenger: messenger}
}

// FetchInbox returns up to limit messages of user's inbox starting at
// offset. Messages that cannot be read are logged and skipped.
func (r *Reader) FetchInbox(ctx context.Context, user common.Address, offset, limit int) ([]InboxMessage, error) {
	ids, err := r.messenger.InboxOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, ids, offset, limit), nil
}

// FetchChannel returns up to limit messages of the channel named
// channelName starting at offset.
func (r *Reader) FetchChannel(ctx context.Context, channelName string, offset, limit int) ([]InboxMessage, error) {
	ids, err := r.messenger.ChannelMessages(ctx, sealr.ChannelID(channelName))
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, ids, offset, limit), nil
}

func (r *Reader) fetch(ctx context.Context, ids []uint64, offset, limit int) []InboxMessage {
	offset = max(offset, 0)
	end := min(offset+max(limit, 0), len(ids))
	if offset >= end {
		return nil
	}

	msgs := make([]InboxMessage, 0, end-offset)
	for _, id := range ids[offset:end] {
		header, err := r.messenger.GetMessageHeader(ctx, id)
		if err != nil {
			r.log.Warn("Failed to fetch message header", zap.Uint64("messageID", id), log.Err(err))
			continue
		}
		content, err := r.messenger.GetMessageCiphertext(ctx, id)
		if err != nil {
			r.log.Warn("Failed to fetch message content", zap.Uint64("messageID", id), log.Err(err))
			continue
		}
		msgs = append(msgs, InboxMessage{
			ID:             strconv.FormatUint(id, 10),
			Sender:         header.Sender,
			Receiver:       header.Receiver,
			Channel:        header.Channel,
			Content:        content,
			TimestampMilli: header.Timestamp * 1000,
			Deleted:        header.Deleted,
		})
	}
	return msgs
}

// MarkAsRead marks messageID read and waits for inclusion.
func (s *Submitter) MarkAsRead(ctx context.Context, messageID uint64) error {
	tx, err := s.messenger.MarkAsRead(ctx, messageID)
	if err != nil {
		return err
	}
	_, err = s.Await(ctx, tx)
	return err
}

// SoftDelete flags messageID deleted and waits for inclusion.
func (s *Submitter) SoftDelete(ctx context.Context, messageID uint64) error {
	tx, err := s.messenger.SoftDelete(ctx, messageID)
	if err != nil {
		return err
	}
	_, err = s.Await(ctx, tx)
	return err
}
