// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT
// =============================================================================

// cancelManager guards the cancel function of the current stream so that
// Stop can be issued from any goroutine, any number of times.
type cancelManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// set stores the cancel function for a newly opened stream.
func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancel = fn
}

// fire invokes the stored cancel function and clears it. Safe to call
// multiple times or with no stream in flight.
func (cm *cancelManager) fire() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel != nil {
		cm.cancel()
		cm.cancel = nil
	}
}

// clear cancels the context if still present and removes it, so contexts
// are never leaked when a stream ends on its own.
func (cm *cancelManager) clear() {
	cm.fire()
}
