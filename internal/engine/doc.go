// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine implements the response-assembly state machine for one
// in-flight continuation request.
//
// A Session moves Idle → Submitting → Receiving → Idle. While Receiving it
// applies decoded stream records in arrival order: content and status text
// accumulate in a cadence-limited flush buffer so observers see a bounded
// update rate, terminal and error signals are counted, and specific record
// shapes commit messages into the sequence or re-identify it through the
// identity ledger.
//
// Continue and extend share one submit path; extend merely persists and
// appends a new user message before the streaming request is sent.
//
// Nothing in this package terminates the process: every failure mode
// degrades to a visible status or Temporary message and a return to Idle,
// with the admission permit released exactly once.
package engine
