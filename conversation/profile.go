// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/sealr"
)

var errEmptyName = errors.New("empty profile name")

// Profile returns the profile of user.
func (s *Store) Profile(ctx context.Context, user common.Address) (*sealr.Profile, error) {
	p, err := s.ledger.GetProfileByAddress(ctx, user)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, sealr.ErrProfileNotFound
	}
	if p.Name != "" {
		s.names.Add(user, p.Name)
	}
	return p, nil
}

// CreateProfile registers the user's profile. Names are unique.
func (s *Store) CreateProfile(ctx context.Context, name, avatarURL string) error {
	name = strings.TrimSpace(name)
	if err := s.checkName(ctx, name, ""); err != nil {
		return err
	}
	tx, err := s.ledger.CreateProfile(ctx, name, avatarURL)
	if err != nil {
		return err
	}
	if _, err := s.submitter.Await(ctx, tx); err != nil {
		return err
	}
	s.names.Add(s.self, name)
	s.conversationList.Invalidate(s.self)
	return nil
}

// UpdateProfile replaces the user's name and avatar.
func (s *Store) UpdateProfile(ctx context.Context, name, avatarURL string) error {
	name = strings.TrimSpace(name)
	current, err := s.Profile(ctx, s.self)
	if err != nil {
		return err
	}
	if err := s.checkName(ctx, name, current.Name); err != nil {
		return err
	}
	tx, err := s.ledger.UpdateProfile(ctx, name, avatarURL)
	if err != nil {
		return err
	}
	if _, err := s.submitter.Await(ctx, tx); err != nil {
		return err
	}
	s.names.Add(s.self, name)
	s.conversationList.Invalidate(s.self)
	return nil
}

// checkName fails if name is empty or taken by someone other than the
// holder of current.
func (s *Store) checkName(ctx context.Context, name, current string) error {
	if name == "" {
		return errEmptyName
	}
	if name == current {
		return nil
	}
	exists, err := s.ledger.NameExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return sealr.ErrNameTaken
	}
	return nil
}
