// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/sealr/crypto/fhe"
)

var (
	_ Ledger    = (*FakeLedger)(nil)
	_ Messenger = (*FakeLedger)(nil)

	ErrFakeReverted = errors.New("execution reverted")
)

// FakeLedger is an in-memory implementation of both contracts. Transactions
// are mined on submission, their events are dispatched to Events, and Wait
// returns the receipt immediately. Views created with As share state, so a
// test can act as several accounts.
type FakeLedger struct {
	state *fakeLedgerState
	from  common.Address
}

// FakeLedgerFaults injects failures into a FakeLedger.
type FakeLedgerFaults struct {
	// SendErr fails SendMessage.
	SendErr error
	// ReadErr fails MyConversations and GetMessages.
	ReadErr error
	// ProfileErr fails GetProfileByAddress.
	ProfileErr error
	// RejectUnattested reverts messenger sends without an attestation.
	RejectUnattested bool
	// OmitLogs strips logs from receipts.
	OmitLogs bool
}

type fakeLedgerState struct {
	lock   sync.Mutex
	events Dispatcher
	faults FakeLedgerFaults

	clock    uint64
	nonce    uint64
	nextConv uint64
	nextMsg  uint64
	// Messenger messages live in their own id space.
	nextMessengerMsg uint64

	conversations map[uint64]*ConversationRecord
	convMessages  map[uint64][]uint64
	messages      map[uint64]*MessageRecord
	direct        map[[2]common.Address]uint64
	profiles      map[common.Address]*Profile

	headers     map[uint64]*MessageHeader
	ciphertexts map[uint64][]byte
	inbox       map[common.Address][]uint64
	channels    map[common.Hash][]uint64
	read        map[uint64]bool

	myConversationsCalls int
	getMessagesCalls     int
	getMessageCalls      int
}

func NewFakeLedger(from common.Address) *FakeLedger {
	return &FakeLedger{
		from: from,
		state: &fakeLedgerState{
			clock:         1_700_000_000,
			conversations: make(map[uint64]*ConversationRecord),
			convMessages:  make(map[uint64][]uint64),
			messages:      make(map[uint64]*MessageRecord),
			direct:        make(map[[2]common.Address]uint64),
			profiles:      make(map[common.Address]*Profile),
			headers:       make(map[uint64]*MessageHeader),
			ciphertexts:   make(map[uint64][]byte),
			inbox:         make(map[common.Address][]uint64),
			channels:      make(map[common.Hash][]uint64),
			read:          make(map[uint64]bool),
		},
	}
}

// As returns a view of the same ledger that submits as from.
func (l *FakeLedger) As(from common.Address) *FakeLedger {
	return &FakeLedger{state: l.state, from: from}
}

// Events is the source of every event the ledger emits.
func (l *FakeLedger) Events() *Dispatcher {
	return &l.state.events
}

// SetFaults replaces the injected failures.
func (l *FakeLedger) SetFaults(faults FakeLedgerFaults) {
	l.state.lock.Lock()
	l.state.faults = faults
	l.state.lock.Unlock()
}

// MyConversationsCalls returns how often MyConversations was called.
func (l *FakeLedger) MyConversationsCalls() int {
	l.state.lock.Lock()
	defer l.state.lock.Unlock()
	return l.state.myConversationsCalls
}

// GetMessageCalls returns how often GetMessage was called.
func (l *FakeLedger) GetMessageCalls() int {
	l.state.lock.Lock()
	defer l.state.lock.Unlock()
	return l.state.getMessageCalls
}

// IsRead reports whether MarkAsRead was called for messageID.
func (l *FakeLedger) IsRead(messageID uint64) bool {
	l.state.lock.Lock()
	defer l.state.lock.Unlock()
	return l.state.read[messageID]
}

func (l *FakeLedger) MyConversations(_ context.Context, user common.Address) ([]ConversationRecord, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	s.myConversationsCalls++
	if s.faults.ReadErr != nil {
		return nil, s.faults.ReadErr
	}
	var out []ConversationRecord
	for id := uint64(1); id <= s.nextConv; id++ {
		c, ok := s.conversations[id]
		if !ok || c.Deleted || !containsAddress(c.Members, user) {
			continue
		}
		out = append(out, copyConversation(c))
	}
	return out, nil
}

func (l *FakeLedger) GetMessages(_ context.Context, conversationID uint64) ([]MessageRecord, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	s.getMessagesCalls++
	if s.faults.ReadErr != nil {
		return nil, s.faults.ReadErr
	}
	ids := s.convMessages[conversationID]
	out := make([]MessageRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyMessage(s.messages[id]))
	}
	return out, nil
}

func (l *FakeLedger) GetMessage(_ context.Context, messageID uint64) (*MessageRecord, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	s.getMessageCalls++
	m, ok := s.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}
	out := copyMessage(m)
	return &out, nil
}

func (l *FakeLedger) GetProfileByAddress(_ context.Context, user common.Address) (*Profile, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.faults.ProfileErr != nil {
		return nil, s.faults.ProfileErr
	}
	p, ok := s.profiles[user]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, user.Hex())
	}
	out := *p
	return &out, nil
}

func (l *FakeLedger) NameExists(_ context.Context, name string) (bool, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, p := range s.profiles {
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (l *FakeLedger) CreateProfile(_ context.Context, name string, avatarURL string) (Transaction, error) {
	return l.putProfile(name, avatarURL, false)
}

func (l *FakeLedger) UpdateProfile(_ context.Context, name string, avatarURL string) (Transaction, error) {
	return l.putProfile(name, avatarURL, true)
}

func (l *FakeLedger) putProfile(name string, avatarURL string, update bool) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	_, exists := s.profiles[l.from]
	if exists != update {
		return nil, ErrFakeReverted
	}
	for addr, p := range s.profiles {
		if p.Name == name && addr != l.from {
			return nil, fmt.Errorf("%w: %w", ErrFakeReverted, ErrNameTaken)
		}
	}
	s.clock++
	s.profiles[l.from] = &Profile{
		Wallet:    l.from,
		Name:      name,
		AvatarURL: avatarURL,
		CreatedAt: s.clock,
		Active:    true,
	}
	return l.mineLocked(nil), nil
}

func (l *FakeLedger) SendMessage(
	_ context.Context,
	conversationID uint64,
	content []fhe.Handle,
	proofs [][]byte,
	reaction fhe.Handle,
	_ []byte,
) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	if s.faults.SendErr != nil {
		s.lock.Unlock()
		return nil, s.faults.SendErr
	}
	c, ok := s.conversations[conversationID]
	if !ok || c.Deleted || !containsAddress(c.Members, l.from) || len(content) != len(proofs) {
		s.lock.Unlock()
		return nil, ErrFakeReverted
	}
	s.nextMsg++
	s.clock++
	id := s.nextMsg
	s.messages[id] = &MessageRecord{
		ID:             id,
		ConversationID: conversationID,
		Sender:         l.from,
		CreatedAt:      s.clock,
		Content:        append([]fhe.Handle(nil), content...),
		Reaction:       reaction,
	}
	s.convMessages[conversationID] = append(s.convMessages[conversationID], id)
	tx := l.mineLocked([]*types.Log{{
		Topics: []common.Hash{MessageSentTopic, uint64Topic(id), uint64Topic(conversationID), addressTopic(l.from)},
	}})
	s.lock.Unlock()

	s.events.Dispatch(&MessageSent{MessageID: id, ConversationID: conversationID, From: l.from})
	return tx, nil
}

func (l *FakeLedger) ChangeReaction(_ context.Context, messageID uint64, reaction fhe.Handle, _ []byte) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	m, ok := s.messages[messageID]
	if !ok {
		s.lock.Unlock()
		return nil, ErrFakeReverted
	}
	m.Reaction = reaction
	tx := l.mineLocked([]*types.Log{{
		Topics: []common.Hash{ReactionChangedTopic, uint64Topic(messageID), addressTopic(l.from)},
	}})
	s.lock.Unlock()

	s.events.Dispatch(&ReactionChanged{MessageID: messageID, By: l.from})
	return tx, nil
}

func (l *FakeLedger) GetOrCreateDirectConversation(_ context.Context, other common.Address) (uint64, error) {
	if other == (common.Address{}) || other == l.from {
		return 0, ErrFakeReverted
	}
	s := l.state
	s.lock.Lock()
	key := pairKey(l.from, other)
	if id, ok := s.direct[key]; ok && !s.conversations[id].Deleted {
		s.lock.Unlock()
		return id, nil
	}
	id := l.createConversationLocked(DirectConversation, "", []common.Address{l.from, other})
	s.direct[key] = id
	s.lock.Unlock()

	s.events.Dispatch(&ConversationCreated{ConversationID: id, Type: DirectConversation})
	return id, nil
}

func (l *FakeLedger) CreateGroupConversation(_ context.Context, name string, members []common.Address) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	all := []common.Address{l.from}
	for _, m := range members {
		if !containsAddress(all, m) {
			all = append(all, m)
		}
	}
	id := l.createConversationLocked(GroupConversation, name, all)
	tx := l.mineLocked([]*types.Log{{
		Topics: []common.Hash{ConversationCreatedTopic, uint64Topic(id)},
		Data:   common.LeftPadBytes([]byte{byte(GroupConversation)}, 32),
	}})
	s.lock.Unlock()

	s.events.Dispatch(&ConversationCreated{ConversationID: id, Type: GroupConversation})
	return tx, nil
}

func (l *FakeLedger) DeleteConversation(_ context.Context, conversationID uint64) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	c, ok := s.conversations[conversationID]
	if !ok || c.Deleted || !containsAddress(c.Members, l.from) {
		s.lock.Unlock()
		return nil, ErrFakeReverted
	}
	c.Deleted = true
	tx := l.mineLocked([]*types.Log{{
		Topics: []common.Hash{ConversationDeletedTopic, uint64Topic(conversationID), addressTopic(l.from)},
	}})
	s.lock.Unlock()

	s.events.Dispatch(&ConversationDeleted{ConversationID: conversationID, By: l.from})
	return tx, nil
}

func (l *FakeLedger) SendDirect(_ context.Context, to common.Address, content []byte, _ fhe.Handle, attestation []byte) (Transaction, error) {
	return l.sendMessenger(to, common.Hash{}, content, attestation)
}

func (l *FakeLedger) SendToChannel(_ context.Context, channel common.Hash, content []byte, _ fhe.Handle, attestation []byte) (Transaction, error) {
	return l.sendMessenger(common.Address{}, channel, content, attestation)
}

func (l *FakeLedger) sendMessenger(to common.Address, channel common.Hash, content []byte, attestation []byte) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	if s.faults.RejectUnattested && len(attestation) == 0 {
		s.lock.Unlock()
		return nil, ErrFakeReverted
	}
	s.nextMessengerMsg++
	s.clock++
	id := s.nextMessengerMsg
	s.headers[id] = &MessageHeader{
		ID:        id,
		Sender:    l.from,
		Receiver:  to,
		Channel:   channel,
		Timestamp: s.clock,
	}
	s.ciphertexts[id] = append([]byte(nil), content...)
	if channel == (common.Hash{}) {
		s.inbox[to] = append(s.inbox[to], id)
	} else {
		s.channels[channel] = append(s.channels[channel], id)
	}
	data := make([]byte, 64)
	copy(data[:32], channel.Bytes())
	binary.BigEndian.PutUint64(data[56:], s.clock)
	tx := l.mineLocked([]*types.Log{{
		Topics: []common.Hash{DirectMessageSentTopic, uint64Topic(id), addressTopic(l.from), addressTopic(to)},
		Data:   data,
	}})
	evt := &DirectMessageSent{MessageID: id, Sender: l.from, Receiver: to, Channel: channel, Timestamp: s.clock}
	s.lock.Unlock()

	s.events.Dispatch(evt)
	return tx, nil
}

func (l *FakeLedger) CreateChannel(_ context.Context, channel common.Hash, _ []common.Address) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.channels[channel]; ok {
		return nil, ErrFakeReverted
	}
	s.channels[channel] = []uint64{}
	return l.mineLocked(nil), nil
}

func (l *FakeLedger) MarkAsRead(_ context.Context, messageID uint64) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.headers[messageID]; !ok {
		return nil, ErrFakeReverted
	}
	s.read[messageID] = true
	return l.mineLocked(nil), nil
}

func (l *FakeLedger) SoftDelete(_ context.Context, messageID uint64) (Transaction, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	h, ok := s.headers[messageID]
	if !ok || (h.Sender != l.from && h.Receiver != l.from) {
		return nil, ErrFakeReverted
	}
	h.Deleted = true
	return l.mineLocked(nil), nil
}

func (l *FakeLedger) InboxOf(_ context.Context, user common.Address) ([]uint64, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]uint64(nil), s.inbox[user]...), nil
}

func (l *FakeLedger) ChannelMessages(_ context.Context, channel common.Hash) ([]uint64, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]uint64(nil), s.channels[channel]...), nil
}

func (l *FakeLedger) GetMessageHeader(_ context.Context, messageID uint64) (*MessageHeader, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	h, ok := s.headers[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}
	out := *h
	return &out, nil
}

func (l *FakeLedger) GetMessageCiphertext(_ context.Context, messageID uint64) ([]byte, error) {
	s := l.state
	s.lock.Lock()
	defer s.lock.Unlock()

	c, ok := s.ciphertexts[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}
	return append([]byte(nil), c...), nil
}

// createConversationLocked must be called with the state lock held.
func (l *FakeLedger) createConversationLocked(ctype ConversationType, name string, members []common.Address) uint64 {
	s := l.state
	s.nextConv++
	s.clock++
	id := s.nextConv
	s.conversations[id] = &ConversationRecord{
		ID:        id,
		Type:      ctype,
		Creator:   l.from,
		Name:      name,
		Members:   members,
		CreatedAt: s.clock,
	}
	return id
}

// mineLocked must be called with the state lock held.
func (l *FakeLedger) mineLocked(logs []*types.Log) *fakeTx {
	s := l.state
	s.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], s.nonce)
	hash := common.Hash(crypto.Keccak256Hash(l.from.Bytes(), n[:]))
	if s.faults.OmitLogs {
		logs = nil
	}
	for i, lg := range logs {
		lg.TxHash = hash
		lg.Index = uint(i)
		lg.BlockNumber = s.nonce
	}
	return &fakeTx{
		hash: hash,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      hash,
			BlockNumber: new(big.Int).SetUint64(s.nonce),
			Logs:        logs,
		},
	}
}

type fakeTx struct {
	hash    common.Hash
	receipt *types.Receipt
}

func (t *fakeTx) Hash() common.Hash {
	return t.hash
}

func (t *fakeTx) Wait(ctx context.Context) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.receipt, nil
}

func uint64Topic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, m := range list {
		if m == a {
			return true
		}
	}
	return false
}

func pairKey(a, b common.Address) [2]common.Address {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return [2]common.Address{a, b}
}

func copyConversation(c *ConversationRecord) ConversationRecord {
	out := *c
	out.Members = append([]common.Address(nil), c.Members...)
	return out
}

func copyMessage(m *MessageRecord) MessageRecord {
	out := *m
	out.Content = append([]fhe.Handle(nil), m.Content...)
	return out
}
