// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

import "fmt"

// Reaction is the reaction attached to a message. Its string form is what
// gets encrypted on chain.
type Reaction string

const (
	ReactionNone  Reaction = "none"
	ReactionLike  Reaction = "like"
	ReactionLove  Reaction = "love"
	ReactionHaha  Reaction = "haha"
	ReactionWow   Reaction = "wow"
	ReactionSad   Reaction = "sad"
	ReactionAngry Reaction = "angry"
)

var reactionEmoji = map[Reaction]string{
	ReactionNone:  "",
	ReactionLike:  "👍",
	ReactionLove:  "❤️",
	ReactionHaha:  "😂",
	ReactionWow:   "😮",
	ReactionSad:   "😢",
	ReactionAngry: "😡",
}

// ParseReaction validates s as a known reaction.
func ParseReaction(s string) (Reaction, error) {
	r := Reaction(s)
	if _, ok := reactionEmoji[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownReaction, s)
	}
	return r, nil
}

// Emoji returns the glyph shown for r. Unknown reactions render as nothing.
func (r Reaction) Emoji() string {
	return reactionEmoji[r]
}
