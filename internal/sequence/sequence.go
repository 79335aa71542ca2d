// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sequence

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SEQUENCE VALUE
// =============================================================================

// Sequence is one conversation thread.
//
// It is an immutable value: the With* operations return a modified copy and
// never touch the receiver, so snapshots handed to observers stay stable.
//
// ClientID is minted once at construction and never changes; it gives the
// UI a stable handle across server-side re-identification. ServerID is zero
// until the sequence is first persisted and is monotonically replaced after
// that: each replacement prepends the previous ID to Ancestors.
type Sequence struct {
	ClientID    uuid.UUID
	ServerID    int64 // 0 until persisted
	HumanDesc   string
	Pinned      bool
	GeneratedAt time.Time
	Messages    []Message
	IsLeaf      bool
	Ancestors   []int64 // most recent first
	ModelID     string
}

// New constructs a fresh local sequence that has not seen the server yet.
func New(modelID string) Sequence {
	return Sequence{
		ClientID:    uuid.New(),
		GeneratedAt: time.Now(),
		IsLeaf:      true,
		ModelID:     modelID,
	}
}

// Persisted reports whether the sequence has a server identity.
func (s Sequence) Persisted() bool {
	return s.ServerID != 0
}

// =============================================================================
// REPLACEMENT OPERATIONS
// =============================================================================

// WithServerID returns a copy re-identified as id. If the sequence already
// had a server identity, that identity is prepended to the ancestor chain.
// The new identity is always a leaf.
func (s Sequence) WithServerID(id int64) Sequence {
	out := s.clone()
	if s.ServerID != 0 {
		out.Ancestors = append([]int64{s.ServerID}, out.Ancestors...)
	}
	out.ServerID = id
	out.IsLeaf = true
	return out
}

// WithDescription returns a copy with a new human-readable description.
func (s Sequence) WithDescription(desc string) Sequence {
	out := s.clone()
	out.HumanDesc = desc
	return out
}

// WithPinned returns a copy with the pinned flag set to v.
func (s Sequence) WithPinned(v bool) Sequence {
	out := s.clone()
	out.Pinned = v
	return out
}

// WithLeaf returns a copy with the leaf flag set to v.
func (s Sequence) WithLeaf(v bool) Sequence {
	out := s.clone()
	out.IsLeaf = v
	return out
}

// Append returns a copy with msgs added to the end of the message list.
func (s Sequence) Append(msgs ...Message) Sequence {
	out := s.clone()
	out.Messages = append(out.Messages, msgs...)
	return out
}

// Insert returns a copy with msg inserted at index i. Out-of-range indexes
// are clamped to the list bounds.
func (s Sequence) Insert(i int, msg Message) Sequence {
	out := s.clone()
	if i < 0 {
		i = 0
	}
	if i > len(out.Messages) {
		i = len(out.Messages)
	}
	out.Messages = append(out.Messages[:i], append([]Message{msg}, out.Messages[i:]...)...)
	return out
}

// WithMessages returns a copy whose message list is exactly msgs.
func (s Sequence) WithMessages(msgs []Message) Sequence {
	out := s.clone()
	out.Messages = append([]Message(nil), msgs...)
	return out
}

// clone copies the value and its slices so mutation of the copy cannot be
// observed through the original.
func (s Sequence) clone() Sequence {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Ancestors = append([]int64(nil), s.Ancestors...)
	return out
}
