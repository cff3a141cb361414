// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sealr

// Position places a message within a run of consecutive messages from the
// same sender.
type Position uint8

const (
	PositionSingle Position = iota
	PositionFirst
	PositionMiddle
	PositionLast
)

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	default:
		return "single"
	}
}

// AssignPositions sets Position on every message of an ordered slice.
func AssignPositions(msgs []Message) {
	for i := range msgs {
		samePrev := i > 0 && msgs[i-1].Sender == msgs[i].Sender
		sameNext := i < len(msgs)-1 && msgs[i+1].Sender == msgs[i].Sender
		switch {
		case samePrev && sameNext:
			msgs[i].Position = PositionMiddle
		case sameNext:
			msgs[i].Position = PositionFirst
		case samePrev:
			msgs[i].Position = PositionLast
		default:
			msgs[i].Position = PositionSingle
		}
	}
}
