// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"context"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// GATE TESTS
// =============================================================================

func TestGate_DefaultCapacityIsOne(t *testing.T) {
	g := New(0)
	if g.Capacity() != 1 {
		t.Errorf("Capacity = %d, want 1", g.Capacity())
	}
	g = New(-3)
	if g.Capacity() != 1 {
		t.Errorf("Capacity = %d, want 1", g.Capacity())
	}
}

// With capacity 1, a second submission must be observably delayed until
// the first releases.
func TestGate_SecondSubmissionWaits(t *testing.T) {
	g := New(1)
	ctx := context.Background()

	first, err := g.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := g.Acquire(ctx)
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		close(acquired)
		second.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second submission admitted while first holds the permit")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second submission never admitted after release")
	}
}

func TestPermit_DoubleReleaseIsNoOp(t *testing.T) {
	g := New(1)

	p, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.Release()
	p.Release()
	p.Release()

	if g.InUse() != 0 {
		t.Errorf("InUse = %d, want 0", g.InUse())
	}

	// The pool must still admit exactly Capacity() holders.
	a, _ := g.Acquire(context.Background())
	if _, ok := g.TryAcquire(); ok {
		t.Error("over-admission after double release")
	}
	a.Release()
}

func TestGate_AcquireHonorsContext(t *testing.T) {
	g := New(1)
	held, _ := g.Acquire(context.Background())
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("Acquire err = %v, want DeadlineExceeded", err)
	}
}

func TestGate_WithReleasesOnPanic(t *testing.T) {
	g := New(1)

	func() {
		defer func() { recover() }()
		_ = g.With(context.Background(), func(context.Context) error {
			panic("boom")
		})
	}()

	if g.InUse() != 0 {
		t.Errorf("InUse = %d after panic, want 0", g.InUse())
	}
}

func TestGate_ConcurrentAdmissionBound(t *testing.T) {
	const capacity = 2
	g := New(capacity)

	var mu sync.Mutex
	inFlight, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.With(context.Background(), func(context.Context) error {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > capacity {
		t.Errorf("peak concurrent admissions = %d, want <= %d", peak, capacity)
	}
}

func TestPermit_NilReleaseIsSafe(t *testing.T) {
	var p *Permit
	p.Release() // must not panic
}
