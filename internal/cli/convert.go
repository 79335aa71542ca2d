// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/sequence"
	"github.com/jeranaias/strand/internal/wire"
)

// sequenceFromDetail converts a server detail payload into the client data
// model. Messages without a server ID are pre-migration rows and map to
// the Legacy variant.
func sequenceFromDetail(d *api.SequenceDetail, fallbackModel string) sequence.Sequence {
	model := d.InferenceModelID
	if model == "" {
		model = fallbackModel
	}

	seq := sequence.New(model)
	seq.ServerID = d.SequenceID
	seq.HumanDesc = d.HumanDesc
	seq.Pinned = d.UserPinned
	seq.IsLeaf = d.IsLeafSequence
	seq.Ancestors = append([]int64(nil), d.ParentSequences...)
	if t, err := wire.ParseTime(d.GeneratedAt); err == nil {
		seq.GeneratedAt = t
	}

	msgs := make([]sequence.Message, 0, len(d.Messages))
	for _, m := range d.Messages {
		at, _ := wire.ParseTime(m.CreatedAt)
		if m.MessageID == 0 {
			msgs = append(msgs, sequence.Legacy{Role: m.Role, Content: m.Content, CreatedAt: at})
			continue
		}
		msgs = append(msgs, sequence.Stored{ID: m.MessageID, Role: m.Role, Content: m.Content, CreatedAt: at})
	}
	seq.Messages = msgs
	return seq
}
