// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package conversation keeps the client-side view of a user's conversations
// and of the messages of the active one.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/cache"
	"github.com/luxfi/sealr/decryption"
	"github.com/luxfi/sealr/signer"
	"github.com/luxfi/sealr/vms/evm"
)

const (
	DefaultRefetchInterval  = 5 * time.Second
	DefaultIndexDelay       = 500 * time.Millisecond
	DefaultPageSize         = 30
	DefaultProfileCacheSize = 256

	// UnknownUserName is shown for counterparts without a readable profile.
	UnknownUserName = "Unknown User"
)

var errStale = errors.New("active conversation changed")

type Config struct {
	// Contract is the conversation contract handles are bound to.
	Contract common.Address
	// RefetchInterval is the minimum time between two conversation list
	// reads.
	RefetchInterval time.Duration
	// IndexDelay is waited before fetching a message the local user just
	// sent. It is a best-effort allowance for indexing lag.
	IndexDelay time.Duration
	// PageSize is the number of newest messages loaded, and the step by
	// which LoadOlder widens the window.
	PageSize         int
	ProfileCacheSize int
}

func (c *Config) setDefaults() {
	if c.RefetchInterval <= 0 {
		c.RefetchInterval = DefaultRefetchInterval
	}
	if c.IndexDelay < 0 {
		c.IndexDelay = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.ProfileCacheSize <= 0 {
		c.ProfileCacheSize = DefaultProfileCacheSize
	}
}

// DefaultConfig returns a Config for contract with default timings.
func DefaultConfig(contract common.Address) Config {
	return Config{
		Contract:   contract,
		IndexDelay: DefaultIndexDelay,
	}
}

// Store is the conversation state of one user. It is safe for concurrent
// use; ledger calls are made without holding the state lock.
type Store struct {
	log       log.Logger
	self      common.Address
	ledger    sealr.Ledger
	submitter *evm.Submitter
	decrypter *decryption.Cache
	signer    signer.Provider
	config    Config

	conversationList *cache.TTLCache[common.Address, []sealr.Conversation]
	names            *cache.LRUCache[common.Address, string]

	lock          sync.Mutex
	conversations []sealr.Conversation
	active        *sealr.Conversation
	generation    uint64
	state         State
	loadErr       error
	messages      []sealr.Message
	visible       int
	sending       SendingStatus
	input         string
}

func New(
	logger log.Logger,
	ledger sealr.Ledger,
	submitter *evm.Submitter,
	decrypter *decryption.Cache,
	signer signer.Provider,
	config Config,
) *Store {
	config.setDefaults()
	self := submitter.From()
	return &Store{
		log:              logger.With(log.Stringer("user", self)),
		self:             self,
		ledger:           ledger,
		submitter:        submitter,
		decrypter:        decrypter,
		signer:           signer,
		config:           config,
		conversationList: cache.NewTTLCache[common.Address, []sealr.Conversation](config.RefetchInterval),
		names:            cache.NewLRUCache[common.Address, string](config.ProfileCacheSize),
		visible:          config.PageSize,
		sending:          SendingIdle,
	}
}

func (s *Store) Self() common.Address {
	return s.self
}

// FetchConversations reads the user's conversations, newest first. Calls
// within the refetch interval of the last read return its result.
func (s *Store) FetchConversations(ctx context.Context) ([]sealr.Conversation, error) {
	convs, err := s.conversationList.Get(s.self, func(user common.Address) ([]sealr.Conversation, error) {
		return s.readConversations(ctx, user)
	}, false)
	if err != nil {
		s.log.Warn("Failed to fetch conversations", log.Err(err))
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.conversations = slices.Clone(convs)
	return slices.Clone(convs), nil
}

// Conversations returns the last fetched conversation list.
func (s *Store) Conversations() []sealr.Conversation {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.conversations)
}

func (s *Store) readConversations(ctx context.Context, user common.Address) ([]sealr.Conversation, error) {
	records, err := s.ledger.MyConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	selfName := s.displayName(ctx, user)

	convs := make([]sealr.Conversation, 0, len(records))
	for _, r := range records {
		if r.Deleted {
			continue
		}
		conv := sealr.Conversation{
			ID:        r.ID,
			Type:      r.Type,
			Creator:   r.Creator,
			Members:   slices.Clone(r.Members),
			CreatedAt: r.CreatedAt,
			Status:    r.Status,
		}
		if r.Type == sealr.DirectConversation {
			conv.Sender = user
			conv.SenderName = selfName
			conv.ReceiverName = UnknownUserName
			if other, ok := otherMember(r.Members, user); ok {
				conv.Receiver = other
				conv.ReceiverName = s.displayName(ctx, other)
			}
		} else {
			conv.Sender = r.Creator
			conv.SenderName = r.Name
			conv.ReceiverName = r.Name
			conv.Info = fmt.Sprintf("%d members", len(r.Members))
		}
		convs = append(convs, conv)
	}
	slices.SortStableFunc(convs, func(a, b sealr.Conversation) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	return convs, nil
}

// displayName returns the profile name of user, or UnknownUserName if it
// cannot be read. Only successful lookups are cached.
func (s *Store) displayName(ctx context.Context, user common.Address) string {
	name, err := s.names.Get(user, func(user common.Address) (string, error) {
		p, err := s.ledger.GetProfileByAddress(ctx, user)
		if err != nil {
			return "", err
		}
		if p == nil || p.Name == "" {
			return "", sealr.ErrProfileNotFound
		}
		return p.Name, nil
	}, false)
	if err != nil {
		s.log.Debug("Failed to read profile", log.Stringer("address", user), log.Err(err))
		return UnknownUserName
	}
	return name
}

func otherMember(members []common.Address, self common.Address) (common.Address, bool) {
	for _, m := range members {
		if m != self {
			return m, true
		}
	}
	return common.Address{}, false
}

// SetActiveConversation selects conv, or clears the selection if conv is
// nil. The message list is reset.
func (s *Store) SetActiveConversation(conv *sealr.Conversation) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.generation++
	s.messages = nil
	s.loadErr = nil
	s.visible = s.config.PageSize
	if conv == nil {
		s.active = nil
		s.state = StateUnloaded
		return
	}
	c := *conv
	c.Members = slices.Clone(conv.Members)
	s.active = &c
	s.state = StateLoading
}

// ActiveConversation returns the selected conversation.
func (s *Store) ActiveConversation() (sealr.Conversation, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.active == nil {
		return sealr.Conversation{}, false
	}
	return *s.active, true
}

// State returns the load state of the active conversation and the error
// that caused StateError.
func (s *Store) State() (State, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state, s.loadErr
}

// DecryptionFailed reports whether the last load could not decrypt any
// message. It is distinct from an empty conversation.
func (s *Store) DecryptionFailed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state == StateError && errors.Is(s.loadErr, sealr.ErrDecryptionUnavailable)
}

// Messages returns the messages of the active conversation, oldest first.
func (s *Store) Messages() []sealr.Message {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.messages)
}

func (s *Store) SendingStatus() SendingStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.sending
}

// Input is the unsent text. A failed send restores its text here.
func (s *Store) Input() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.input
}

func (s *Store) SetInput(text string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.input = text
}

// GetOrCreateDirectConversation returns the id of the direct conversation
// with other.
func (s *Store) GetOrCreateDirectConversation(ctx context.Context, other common.Address) (uint64, error) {
	if other == (common.Address{}) || other == s.self {
		return 0, sealr.ErrInvalidRecipient
	}
	id, err := s.ledger.GetOrCreateDirectConversation(ctx, other)
	if err != nil {
		return 0, err
	}
	s.conversationList.Invalidate(s.self)
	return id, nil
}

// CreateGroup creates a group conversation of the user and members.
func (s *Store) CreateGroup(ctx context.Context, name string, members []common.Address) error {
	tx, err := s.ledger.CreateGroupConversation(ctx, name, members)
	if err != nil {
		return err
	}
	if _, err := s.submitter.Await(ctx, tx); err != nil {
		return err
	}
	s.conversationList.Invalidate(s.self)
	return nil
}

// DeleteConversation deletes conversationID on chain, then drops it locally
// and clears the selection if it was active.
func (s *Store) DeleteConversation(ctx context.Context, conversationID uint64) error {
	tx, err := s.ledger.DeleteConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if _, err := s.submitter.Await(ctx, tx); err != nil {
		return err
	}
	s.conversationList.Invalidate(s.self)
	s.decrypter.Forget(strconv.FormatUint(conversationID, 10))

	s.lock.Lock()
	defer s.lock.Unlock()
	s.conversations = slices.DeleteFunc(s.conversations, func(c sealr.Conversation) bool {
		return c.ID == conversationID
	})
	if s.active != nil && s.active.ID == conversationID {
		s.generation++
		s.active = nil
		s.messages = nil
		s.loadErr = nil
		s.state = StateUnloaded
	}
	return nil
}

// Clear drops all local state.
func (s *Store) Clear() {
	s.conversationList.Purge()
	s.names.Purge()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.generation++
	s.conversations = nil
	s.active = nil
	s.messages = nil
	s.loadErr = nil
	s.state = StateUnloaded
	s.visible = s.config.PageSize
	s.sending = SendingIdle
	s.input = ""
}
