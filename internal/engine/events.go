// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "github.com/jeranaias/strand/internal/sequence"

// =============================================================================
// OBSERVER CALLBACKS
// =============================================================================

// Events is the observer callback set for one session. Any field may be
// nil. Callbacks run on the stream's goroutine after the session lock is
// released and must not call back into the Session.
type Events struct {
	// OnBegin fires when the first record of a stream arrives (the
	// Submitting → Receiving transition). The UI clears its prompt input
	// here.
	OnBegin func()

	// OnContent fires on each cadence flush with the full in-progress
	// response text so far.
	OnContent func(text string)

	// OnStatus fires with transient server status text.
	OnStatus func(status string)

	// OnCommit fires when a message is committed into the sequence.
	OnCommit func(msg sequence.Message)

	// OnAutoname fires when the server retitles the sequence. firstTitle
	// is true when the sequence had no description before; the UI shows a
	// "pin this title" hint in that case.
	OnAutoname func(name string, firstTitle bool)

	// OnAnomaly fires for reportable, non-fatal protocol anomalies.
	OnAnomaly func(detail string)

	// OnFinish fires once per submission when the session returns to
	// Idle, with the final sequence snapshot. err is nil on normal
	// completion and context.Canceled after a user-requested stop.
	OnFinish func(seq sequence.Sequence, err error)
}

func (e Events) begin() func() {
	if e.OnBegin == nil {
		return nil
	}
	return e.OnBegin
}

func (e Events) content(text string) func() {
	if e.OnContent == nil {
		return nil
	}
	return func() { e.OnContent(text) }
}

func (e Events) status(s string) func() {
	if e.OnStatus == nil {
		return nil
	}
	return func() { e.OnStatus(s) }
}

func (e Events) commit(msg sequence.Message) func() {
	if e.OnCommit == nil {
		return nil
	}
	return func() { e.OnCommit(msg) }
}

func (e Events) autoname(name string, first bool) func() {
	if e.OnAutoname == nil {
		return nil
	}
	return func() { e.OnAutoname(name, first) }
}

func (e Events) anomaly(detail string) func() {
	if e.OnAnomaly == nil {
		return nil
	}
	return func() { e.OnAnomaly(detail) }
}

func (e Events) finish(seq sequence.Sequence, err error) func() {
	if e.OnFinish == nil {
		return nil
	}
	return func() { e.OnFinish(seq, err) }
}

// fireList collects deferred callbacks built while the session lock is
// held; run executes them in order after the lock is released (the same
// callbacks-outside-lock pattern the rest of the codebase uses).
type fireList []func()

func (f *fireList) add(fn func()) {
	if fn != nil {
		*f = append(*f, fn)
	}
}

func (f fireList) run() {
	for _, fn := range f {
		fn()
	}
}
