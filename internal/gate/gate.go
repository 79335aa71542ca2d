// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gate provides admission control for backend inference requests.
//
// Generation backends are typically single-threaded, so no matter how many
// sessions want to submit work, only a bounded number of requests may be in
// flight. The default capacity is 1, which serializes all submissions.
package gate

import (
	"context"
	"sync"
)

// =============================================================================
// ADMISSION GATE
// =============================================================================

// Gate is a bounded pool of admission permits.
type Gate struct {
	permits chan struct{}
}

// New creates a gate with the given capacity. Capacities below 1 are
// treated as 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{permits: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is free or ctx is done. The returned permit
// must be released on every exit path; Release is safe to call more than
// once, so `defer permit.Release()` is the expected pattern.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case g.permits <- struct{}{}:
		return &Permit{gate: g}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire returns a permit immediately if one is free.
func (g *Gate) TryAcquire() (*Permit, bool) {
	select {
	case g.permits <- struct{}{}:
		return &Permit{gate: g}, true
	default:
		return nil, false
	}
}

// With runs fn while holding a permit. The permit is released when fn
// returns, on success and panic alike.
func (g *Gate) With(ctx context.Context, fn func(ctx context.Context) error) error {
	permit, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer permit.Release()
	return fn(ctx)
}

// Capacity returns the configured number of permits.
func (g *Gate) Capacity() int {
	return cap(g.permits)
}

// InUse returns how many permits are currently held.
func (g *Gate) InUse() int {
	return len(g.permits)
}

// =============================================================================
// PERMIT
// =============================================================================

// Permit represents the right to have one outstanding backend submission.
// Releasing twice is a no-op: the pool can never be over-returned.
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release returns the permit to the pool. Exactly one return happens no
// matter how many times Release is called.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		<-p.gate.permits
	})
}
