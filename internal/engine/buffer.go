// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// FLUSH BUFFER
// =============================================================================

// defaultFlushInterval bounds how often buffered content/status becomes
// observable on high-throughput streams.
const defaultFlushInterval = 80 * time.Millisecond

// flushBuffer accumulates response content and status text between
// observable updates. Content bytes are never reordered or dropped; the
// cadence only coalesces consecutive fragments into one update.
//
// Not safe for concurrent use on its own; the owning Session's lock guards
// every call.
type flushBuffer struct {
	content strings.Builder
	status  string
	dirty   bool // status changed since last flush

	// The limiter's bucket starts full, so the first fragment of a stream
	// is observable immediately; later fragments coalesce.
	limiter *rate.Limiter
}

func newFlushBuffer(interval time.Duration) *flushBuffer {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &flushBuffer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// writeContent appends a response fragment.
func (b *flushBuffer) writeContent(s string) {
	b.content.WriteString(s)
}

// setStatus replaces the buffered status string.
func (b *flushBuffer) setStatus(s string) {
	b.status = s
	b.dirty = true
}

// flush drains the buffer if the cadence allows it (or force is set).
// A flushed status of "" means no status update was pending; the protocol
// never transmits empty status text.
func (b *flushBuffer) flush(force bool) (content, status string, ok bool) {
	if b.content.Len() == 0 && !b.dirty {
		return "", "", false
	}
	if !force && !b.limiter.Allow() {
		return "", "", false
	}
	content = b.content.String()
	b.content.Reset()
	if b.dirty {
		status = b.status
		b.dirty = false
	}
	return content, status, true
}

// reset discards everything buffered.
func (b *flushBuffer) reset() {
	b.content.Reset()
	b.status = ""
	b.dirty = false
}
