// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sequence defines the client-side data model for conversation
// threads ("sequences") and their messages.
package sequence

import "time"

// =============================================================================
// MESSAGE SUM TYPE
// =============================================================================

// Message is a closed sum over the three message representations. Only
// Stored, Temporary, and Legacy implement it; consumers switch exhaustively
// on the concrete type rather than branching on flags.
type Message interface {
	isMessage()
}

// Stored is an authoritative, server-persisted message. Its identity is the
// server-assigned ID and its content is immutable.
type Stored struct {
	ID        int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Temporary is a locally synthesized message: error notices, partial or
// interrupted responses, templated-prompt echoes. It has no durable
// identity and must never be sent back to the server as if persisted.
// Origin tags it for display filtering.
type Temporary struct {
	Origin    TempOrigin
	Role      string
	Content   string
	CreatedAt time.Time
}

// Legacy is the pre-migration message shape, kept only so old local data
// remains readable.
type Legacy struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

func (Stored) isMessage()    {}
func (Temporary) isMessage() {}
func (Legacy) isMessage()    {}

// =============================================================================
// TEMPORARY MESSAGE ORIGINS
// =============================================================================

// TempOrigin identifies why a Temporary message was synthesized.
type TempOrigin int

const (
	// OriginServerError is a server-reported generation failure.
	OriginServerError TempOrigin = iota

	// OriginPartialResponse is response text cut short by an error or a
	// user-requested stop.
	OriginPartialResponse

	// OriginPromptEcho is the fully-rendered templated prompt, kept for
	// auditing.
	OriginPromptEcho

	// OriginNoData marks a stream that ended without any response data.
	OriginNoData

	// OriginInterrupted marks a stream that ended without a done signal
	// after some content had arrived.
	OriginInterrupted
)

func (o TempOrigin) String() string {
	switch o {
	case OriginServerError:
		return "server-error"
	case OriginPartialResponse:
		return "partial-response"
	case OriginPromptEcho:
		return "prompt-echo"
	case OriginNoData:
		return "no-data"
	case OriginInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Roles used on synthesized messages. The notice roles double as the
// user-visible label, matching what the server-side roles look like in
// a transcript.
const (
	RoleUser        = "user"
	RoleAssistant   = "assistant"
	RoleSystem      = "system"
	RoleServerError = "server error"
	RolePartial     = "partial assistant response"
	RolePromptEcho  = "templated prompt"
	RoleNoData      = "no response data received"
	RoleInterrupted = "response interrupted"
)

// =============================================================================
// EXHAUSTIVE ACCESSORS
// =============================================================================

// RoleOf returns the role of any message variant.
func RoleOf(m Message) string {
	switch mm := m.(type) {
	case Stored:
		return mm.Role
	case Temporary:
		return mm.Role
	case Legacy:
		return mm.Role
	}
	return ""
}

// ContentOf returns the content of any message variant.
func ContentOf(m Message) string {
	switch mm := m.(type) {
	case Stored:
		return mm.Content
	case Temporary:
		return mm.Content
	case Legacy:
		return mm.Content
	}
	return ""
}

// TimeOf returns the creation time of any message variant.
func TimeOf(m Message) time.Time {
	switch mm := m.(type) {
	case Stored:
		return mm.CreatedAt
	case Temporary:
		return mm.CreatedAt
	case Legacy:
		return mm.CreatedAt
	}
	return time.Time{}
}

// IsLocal reports whether the message exists only on this client.
func IsLocal(m Message) bool {
	_, ok := m.(Temporary)
	return ok
}
