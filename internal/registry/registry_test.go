// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/engine"
	"github.com/jeranaias/strand/internal/gate"
	"github.com/jeranaias/strand/internal/sequence"
	"github.com/jeranaias/strand/internal/wire"
)

// scriptedBackend replays a fixed record list on every streaming call and
// hands out predictable IDs.
type scriptedBackend struct {
	mu             sync.Mutex
	nextMessageID  int64
	nextSequenceID int64
	records        []wire.Record
	hold           chan struct{}
}

func newScriptedBackend(records ...wire.Record) *scriptedBackend {
	return &scriptedBackend{nextMessageID: 100, nextSequenceID: 7, records: records}
}

func (b *scriptedBackend) CreateMessage(context.Context, api.CreateMessageRequest) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextMessageID
	b.nextMessageID++
	return id, nil
}

func (b *scriptedBackend) CreateSequence(context.Context, api.CreateSequenceRequest) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSequenceID
	b.nextSequenceID++
	return id, nil
}

func (b *scriptedBackend) ContinueSequence(ctx context.Context, _ int64, _ api.ContinuationParams, fn api.RecordFunc) (*api.StreamResult, error) {
	return b.stream(ctx, fn)
}

func (b *scriptedBackend) ExtendSequence(ctx context.Context, _ int64, _ api.ContinuationParams, fn api.RecordFunc) (*api.StreamResult, error) {
	return b.stream(ctx, fn)
}

func (b *scriptedBackend) stream(ctx context.Context, fn api.RecordFunc) (*api.StreamResult, error) {
	for _, rec := range b.records {
		fn(rec)
	}
	if b.hold != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.hold:
		}
	}
	return &api.StreamResult{}, nil
}

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }

func newTestRegistry(backend engine.Backend) *Registry {
	return New(backend, gate.New(1), Options{FlushInterval: time.Millisecond})
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := newTestRegistry(newScriptedBackend())

	seq := sequence.New("m")
	s1 := r.GetOrCreate(seq)
	s2 := r.GetOrCreate(seq)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Len())
}

func TestGetOrCreateMatchesByServerIdentity(t *testing.T) {
	r := newTestRegistry(newScriptedBackend())

	a := sequence.New("m")
	a.ServerID = 11
	s1 := r.GetOrCreate(a)

	// A second fetch of the same server sequence gets a different client
	// ID but must resolve to the existing session.
	b := sequence.New("m")
	b.ServerID = 11
	s2 := r.GetOrCreate(b)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Len())
}

func TestUpdatePropagatesWhenIdle(t *testing.T) {
	r := newTestRegistry(newScriptedBackend())

	seq := sequence.New("m")
	seq.ServerID = 11
	s := r.GetOrCreate(seq)

	fresh := seq.WithDescription("titled").Append(sequence.Stored{ID: 1, Role: sequence.RoleUser, Content: "hi"})
	require.True(t, r.Update(fresh))

	assert.Equal(t, "titled", s.Sequence().HumanDesc)
	got, ok := r.Sequence(seq.ClientID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 1)
}

func TestUpdateSkippedWhileReceiving(t *testing.T) {
	backend := newScriptedBackend(
		wire.Record{Message: &wire.RecordMessage{Role: "assistant", Content: "live"}},
	)
	backend.hold = make(chan struct{})
	r := newTestRegistry(backend)

	seq := sequence.New("m")
	seq.ServerID = 11
	s := r.GetOrCreate(seq)

	done := make(chan error, 1)
	go func() { done <- s.Continue(context.Background(), api.ContinuationParams{}) }()
	require.Eventually(t, s.Receiving, time.Second, 2*time.Millisecond)

	stale := seq.WithDescription("stale server copy")
	require.True(t, r.Update(stale))

	// The in-flight session's view is authoritative.
	got, ok := r.Sequence(seq.ClientID)
	require.True(t, ok)
	assert.Empty(t, got.HumanDesc)

	close(backend.hold)
	require.NoError(t, <-done)

	// After completion the cache holds the session's final view, not the
	// skipped update.
	got, ok = r.Sequence(seq.ClientID)
	require.True(t, ok)
	assert.Empty(t, got.HumanDesc)
	assert.NotEmpty(t, got.Messages)
}

func TestRenameRepointsCacheAndIndex(t *testing.T) {
	r := newTestRegistry(newScriptedBackend())

	seq := sequence.New("m")
	seq.ServerID = 11
	r.GetOrCreate(seq)

	r.Rename(seq.ClientID, 11, 12)

	id, ok := r.Resolve(12)
	require.True(t, ok)
	assert.Equal(t, seq.ClientID, id)
	_, ok = r.Resolve(11)
	assert.False(t, ok)

	got, ok := r.Sequence(seq.ClientID)
	require.True(t, ok)
	assert.Equal(t, seq.ClientID, got.ClientID)
	assert.Equal(t, int64(12), got.ServerID)
	require.NotEmpty(t, got.Ancestors)
	assert.Equal(t, int64(11), got.Ancestors[0])
}

func TestRenameDemotesStaleCopyOfOldIdentity(t *testing.T) {
	r := newTestRegistry(newScriptedBackend())

	// The superseded identity was fetched earlier as its own sequence.
	old := sequence.New("m")
	old.ServerID = 11
	old.IsLeaf = true
	old.Pinned = true
	r.GetOrCreate(old)

	// A different client-local sequence gets persisted over it.
	fork := sequence.New("m")
	r.GetOrCreate(fork)
	r.Rename(fork.ClientID, 11, 12)

	got, ok := r.Sequence(old.ClientID)
	require.True(t, ok)
	assert.False(t, got.IsLeaf)
	assert.False(t, got.Pinned)
}

func TestMidStreamRenameEndToEnd(t *testing.T) {
	backend := newScriptedBackend(
		wire.Record{NewSequenceID: i64p(91)},
		wire.Record{Message: &wire.RecordMessage{Role: "assistant", Content: "branched"}},
		wire.Record{Done: true},
		wire.Record{NewMessageID: i64p(42)},
	)
	r := newTestRegistry(backend)

	seq := sequence.New("m")
	seq.ServerID = 7
	s := r.GetOrCreate(seq)

	require.NoError(t, s.Continue(context.Background(), api.ContinuationParams{}))

	id, ok := r.Resolve(91)
	require.True(t, ok)
	assert.Equal(t, seq.ClientID, id)

	got, ok := r.Sequence(seq.ClientID)
	require.True(t, ok)
	assert.Equal(t, seq.ClientID, got.ClientID)
	assert.Equal(t, int64(91), got.ServerID)
	assert.Contains(t, got.Ancestors, int64(7))
	// The message list was never truncated by the rename.
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "branched", sequence.ContentOf(got.Messages[0]))
}

func TestEvict(t *testing.T) {
	backend := newScriptedBackend()
	backend.hold = make(chan struct{})
	r := newTestRegistry(backend)

	seq := sequence.New("m")
	s := r.GetOrCreate(seq)

	done := make(chan error, 1)
	go func() { done <- s.Continue(context.Background(), api.ContinuationParams{}) }()
	require.Eventually(t, s.Receiving, time.Second, 2*time.Millisecond)

	assert.False(t, r.Evict(seq.ClientID))

	close(backend.hold)
	require.NoError(t, <-done)

	assert.True(t, r.Evict(seq.ClientID))
	assert.Equal(t, 0, r.Len())
	_, ok := r.Sequence(seq.ClientID)
	assert.False(t, ok)
}
