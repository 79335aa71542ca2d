// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateMessageRequest is the body of POST /messages. CreatedAt uses the
// wire timestamp format (wire.FormatTime).
type CreateMessageRequest struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// CreateSequenceRequest is the body of POST /sequences.
type CreateSequenceRequest struct {
	HumanDesc          *string `json:"human_desc,omitempty"`
	UserPinned         bool    `json:"user_pinned"`
	CurrentMessage     int64   `json:"current_message"`
	ParentSequence     *int64  `json:"parent_sequence,omitempty"`
	GeneratedAt        string  `json:"generated_at"`
	GenerationComplete bool    `json:"generation_complete"`
	InferenceJobID     *string `json:"inference_job_id,omitempty"`
	InferenceError     *string `json:"inference_error,omitempty"`
}

// ContinuationParams is the body of the streaming continue/extend POST.
// Retrieval and autonaming settings pass through to the server opaquely.
type ContinuationParams struct {
	InferenceModelID  string         `json:"inference_model_id,omitempty"`
	AutonamingModelID string         `json:"autonaming_model_id,omitempty"`
	InferenceOptions  map[string]any `json:"inference_options,omitempty"`
	RetrievalPolicy   string         `json:"retrieval_policy,omitempty"`
	RetrievalArgs     map[string]any `json:"retrieval_args,omitempty"`
	AutonamingPolicy  string         `json:"autonaming_policy,omitempty"`
	SeedText          string         `json:"seed_text,omitempty"`
}

// RecentQuery carries the query parameters of GET /sequences/.recent/as-json.
type RecentQuery struct {
	Lookback             int
	Limit                int
	IncludeUserPinned    bool
	IncludeLeafSequences bool
	IncludeAll           bool
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type createMessageResponse struct {
	MessageID int64 `json:"message_id"`
}

type createSequenceResponse struct {
	SequenceID int64 `json:"sequence_id"`
}

type autonameResponse struct {
	Autoname string `json:"autoname"`
}

// serverError is the error envelope non-2xx responses may carry.
type serverError struct {
	Error string `json:"error"`
}

// MessageDetail is one persisted message in a sequence detail response.
type MessageDetail struct {
	MessageID int64  `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// SequenceDetail is the body of GET /sequences/{id}/as-json and each
// element of the recent-sequences listing.
type SequenceDetail struct {
	SequenceID       int64           `json:"sequence_id"`
	Messages         []MessageDetail `json:"messages"`
	ParentSequences  []int64         `json:"parent_sequences"`
	IsLeafSequence   bool            `json:"is_leaf_sequence"`
	HumanDesc        string          `json:"human_desc"`
	UserPinned       bool            `json:"user_pinned"`
	GeneratedAt      string          `json:"generated_at"`
	InferenceModelID string          `json:"inference_model_id"`
}

// =============================================================================
// STREAM RESULT
// =============================================================================

// StreamResult summarizes protocol anomalies observed while consuming one
// streaming response. Anomalies are reportable, never fatal.
type StreamResult struct {
	// CorruptChunks counts newline-terminated slices that failed to parse.
	CorruptChunks int

	// TrailingBytes is how many undecoded bytes were discarded when the
	// stream ended mid-record.
	TrailingBytes int
}
