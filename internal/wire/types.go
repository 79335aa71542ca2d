// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

// =============================================================================
// STREAM RECORD
// =============================================================================

// Record is one decoded JSON object from a continue/extend stream.
//
// Every field is optional on the wire; a record typically carries only one
// or two of them. Pointer fields distinguish "absent" from "zero value".
// Unknown keys sent by newer servers are ignored by encoding/json, which is
// exactly the behavior the protocol requires.
type Record struct {
	// Status is transient progress text ("loading model", "retrieving", ...).
	Status *string `json:"status"`

	// Message carries a fragment of generated response text.
	Message *RecordMessage `json:"message"`

	// Done signals normal completion of generation. Exactly one done
	// record is expected per stream.
	Done bool `json:"done"`

	// Error is server-reported failure text.
	Error *string `json:"error"`

	// PromptWithTemplating is the fully-rendered prompt, sent near the end
	// of generation for auditing. It semantically describes the beginning
	// of the response.
	PromptWithTemplating *string `json:"prompt_with_templating"`

	// NewSequenceID announces that the turn has been persisted under a new
	// sequence identity.
	NewSequenceID *int64 `json:"new_sequence_id"`

	// NewMessageID announces that the in-progress response now has a
	// durable server identity.
	NewMessageID *int64 `json:"new_message_id"`

	// Autoname is a server-generated short title for the sequence.
	Autoname *string `json:"autoname"`
}

// RecordMessage is the nested message object inside a stream record.
type RecordMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HasContent reports whether the record carries response text.
func (r *Record) HasContent() bool {
	return r.Message != nil && r.Message.Content != ""
}
