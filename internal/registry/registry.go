// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry owns the canonical cache of sequences and the sessions
// bound to them. It guarantees at most one live session per sequence and
// propagates server-side re-identification to every cached copy.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/strand/internal/engine"
	"github.com/jeranaias/strand/internal/gate"
	"github.com/jeranaias/strand/internal/sequence"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Options configures session construction.
type Options struct {
	// FlushInterval is passed through to each session.
	FlushInterval time.Duration

	// Events receives observer callbacks for every session. When EventsFor
	// is set it takes precedence.
	Events engine.Events

	// EventsFor builds per-sequence callbacks.
	EventsFor func(clientID uuid.UUID) engine.Events
}

type entry struct {
	seq     sequence.Sequence
	session *engine.Session
}

// Registry is the canonical sequence cache. It implements engine.Ledger.
//
// Lock order: registry lock before session lock, never the reverse. The
// engine upholds this by calling Rename and all observer callbacks with
// its own lock released.
type Registry struct {
	mu       sync.Mutex
	byClient map[uuid.UUID]*entry
	byServer map[int64]uuid.UUID

	backend engine.Backend
	gate    *gate.Gate
	opts    Options
}

// New creates an empty registry. All sessions it constructs share the
// given admission gate.
func New(backend engine.Backend, g *gate.Gate, opts Options) *Registry {
	return &Registry{
		byClient: make(map[uuid.UUID]*entry),
		byServer: make(map[int64]uuid.UUID),
		backend:  backend,
		gate:     g,
		opts:     opts,
	}
}

// GetOrCreate returns the session bound to the given sequence, matched by
// server identity when present and by client-local identity otherwise. A
// sequence never gets a second live session.
func (r *Registry) GetOrCreate(seq sequence.Sequence) *engine.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.lookupLocked(seq); e != nil {
		return e.session
	}

	s := engine.NewSession(seq, r.backend, r.gate, r, engine.Options{
		FlushInterval: r.opts.FlushInterval,
		Events:        r.eventsFor(seq.ClientID),
	})
	e := &entry{seq: seq, session: s}
	r.byClient[seq.ClientID] = e
	if seq.ServerID != 0 {
		r.byServer[seq.ServerID] = seq.ClientID
	}
	return s
}

// Update replaces the cached copy of a known sequence with fresher server
// data and hands it to the bound session. A session that is currently
// receiving keeps its own view; it reconciles back into the cache when
// the stream completes. Returns false for sequences the registry has
// never seen.
func (r *Registry) Update(seq sequence.Sequence) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookupLocked(seq)
	if e == nil {
		return false
	}

	seq.ClientID = e.seq.ClientID
	if e.session.Adopt(seq) {
		e.seq = seq
		if seq.ServerID != 0 {
			r.byServer[seq.ServerID] = seq.ClientID
		}
	}
	return true
}

// Sequence returns the current view of a cached sequence. While a stream
// is in flight the owning session's copy is authoritative.
func (r *Registry) Sequence(clientID uuid.UUID) (sequence.Sequence, bool) {
	r.mu.Lock()
	e := r.byClient[clientID]
	r.mu.Unlock()

	if e == nil {
		return sequence.Sequence{}, false
	}
	if e.session.Receiving() {
		return e.session.Sequence(), true
	}
	r.mu.Lock()
	seq := e.seq
	r.mu.Unlock()
	return seq, true
}

// Resolve maps a server identifier to the client-local identifier it is
// currently cached under. Renamed sequences resolve through their newest
// server identity only.
func (r *Registry) Resolve(serverID int64) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byServer[serverID]
	return id, ok
}

// Evict drops a sequence and its session from the cache. Refused while a
// stream is in flight.
func (r *Registry) Evict(clientID uuid.UUID) bool {
	r.mu.Lock()
	e := r.byClient[clientID]
	r.mu.Unlock()
	if e == nil {
		return true
	}
	if e.session.Receiving() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.byClient[clientID]; cur != e {
		return cur == nil
	}
	delete(r.byClient, clientID)
	if e.seq.ServerID != 0 && r.byServer[e.seq.ServerID] == clientID {
		delete(r.byServer, e.seq.ServerID)
	}
	return true
}

// Len reports how many sequences are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClient)
}

// =============================================================================
// LEDGER
// =============================================================================

// Rename records that the sequence known to the client as clientID has
// been persisted under a new server identity. The cached copy is
// re-pointed at the new identity with the old one prepended to its
// ancestor chain, and any separately cached copy of the old identity is
// marked non-leaf and unpinned. Safe to call while the same sequence's
// session is receiving; the in-flight stream already carries the new
// identity and reconciles at completion.
func (r *Registry) Rename(clientID uuid.UUID, oldServerID, newServerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.byClient[clientID]; e != nil && e.seq.ServerID != newServerID {
		e.seq = e.seq.WithServerID(newServerID)
	}

	if oldServerID != 0 {
		if stale, ok := r.byServer[oldServerID]; ok && stale != clientID {
			// A fetched copy of the superseded identity lives under its
			// own client ID; it is no longer the tip of the thread.
			if e := r.byClient[stale]; e != nil {
				e.seq = e.seq.WithLeaf(false).WithPinned(false)
			}
		}
		if r.byServer[oldServerID] == clientID {
			delete(r.byServer, oldServerID)
		}
	}
	r.byServer[newServerID] = clientID
}

// =============================================================================
// INTERNALS
// =============================================================================

// lookupLocked matches by server identity first, then by client identity.
func (r *Registry) lookupLocked(seq sequence.Sequence) *entry {
	if seq.ServerID != 0 {
		if id, ok := r.byServer[seq.ServerID]; ok {
			if e := r.byClient[id]; e != nil {
				return e
			}
		}
	}
	return r.byClient[seq.ClientID]
}

// eventsFor builds the session callbacks, wrapping OnFinish so completed
// streams write their final sequence back into the cache.
func (r *Registry) eventsFor(clientID uuid.UUID) engine.Events {
	ev := r.opts.Events
	if r.opts.EventsFor != nil {
		ev = r.opts.EventsFor(clientID)
	}
	userFinish := ev.OnFinish
	ev.OnFinish = func(seq sequence.Sequence, err error) {
		r.reconcile(clientID, seq)
		if userFinish != nil {
			userFinish(seq, err)
		}
	}
	return ev
}

// reconcile commits the session's final view of its sequence back to the
// canonical cache once a stream has ended.
func (r *Registry) reconcile(clientID uuid.UUID, seq sequence.Sequence) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.byClient[clientID]
	if e == nil {
		return
	}
	old := e.seq.ServerID
	e.seq = seq
	if old != 0 && old != seq.ServerID && r.byServer[old] == clientID {
		delete(r.byServer, old)
	}
	if seq.ServerID != 0 {
		r.byServer[seq.ServerID] = clientID
	}
}
