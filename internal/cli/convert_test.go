// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/sequence"
)

func TestSequenceFromDetail(t *testing.T) {
	detail := &api.SequenceDetail{
		SequenceID:       42,
		HumanDesc:        "goroutine leak hunt",
		UserPinned:       true,
		IsLeafSequence:   true,
		ParentSequences:  []int64{17, 3},
		GeneratedAt:      "2025-03-02T10:15:30.123456",
		InferenceModelID: "llama3.1:8b",
		Messages: []api.MessageDetail{
			{MessageID: 7, Role: sequence.RoleUser, Content: "hello", CreatedAt: "2025-03-02T10:15:30.000001"},
			{MessageID: 8, Role: sequence.RoleAssistant, Content: "hi there", CreatedAt: "2025-03-02T10:15:31.000002"},
		},
	}

	seq := sequenceFromDetail(detail, "fallback-model")

	assert.Equal(t, int64(42), seq.ServerID)
	assert.Equal(t, "goroutine leak hunt", seq.HumanDesc)
	assert.True(t, seq.Pinned)
	assert.True(t, seq.IsLeaf)
	assert.Equal(t, []int64{17, 3}, seq.Ancestors)
	assert.Equal(t, "llama3.1:8b", seq.ModelID)
	assert.Equal(t, time.Date(2025, 3, 2, 10, 15, 30, 123456000, time.UTC), seq.GeneratedAt)

	require.Len(t, seq.Messages, 2)
	first, ok := seq.Messages[0].(sequence.Stored)
	require.True(t, ok)
	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, "hello", first.Content)
}

func TestSequenceFromDetailFallbackModel(t *testing.T) {
	seq := sequenceFromDetail(&api.SequenceDetail{SequenceID: 1}, "fallback-model")
	assert.Equal(t, "fallback-model", seq.ModelID)
}

func TestSequenceFromDetailLegacyMessages(t *testing.T) {
	detail := &api.SequenceDetail{
		SequenceID: 5,
		Messages: []api.MessageDetail{
			{MessageID: 0, Role: sequence.RoleUser, Content: "old row"},
			{MessageID: 9, Role: sequence.RoleAssistant, Content: "new row"},
		},
	}

	seq := sequenceFromDetail(detail, "m")

	require.Len(t, seq.Messages, 2)
	_, legacy := seq.Messages[0].(sequence.Legacy)
	assert.True(t, legacy)
	_, stored := seq.Messages[1].(sequence.Stored)
	assert.True(t, stored)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a very ...", truncate("a very long title indeed", 10))
}

func TestRelativeDateZero(t *testing.T) {
	assert.Equal(t, "-", relativeDate(time.Time{}))
}
