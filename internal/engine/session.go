// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/gate"
	"github.com/jeranaias/strand/internal/sequence"
	"github.com/jeranaias/strand/internal/wire"
)

// =============================================================================
// PHASES AND ERRORS
// =============================================================================

// Phase is the session lifecycle state.
type Phase int

const (
	// PhaseIdle means no request is outstanding; the session admits a new
	// submission.
	PhaseIdle Phase = iota

	// PhaseSubmitting means the request has been sent but no bytes have
	// arrived yet.
	PhaseSubmitting

	// PhaseReceiving means at least one record has been processed and a
	// response-in-progress exists.
	PhaseReceiving
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseReceiving:
		return "receiving"
	}
	return "unknown"
}

// ErrBusy is returned when a submission is attempted while another is
// outstanding on the same session.
var ErrBusy = errors.New("session already has an outstanding request")

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Backend is the slice of the Sequence API a session drives. *api.Client
// satisfies it.
type Backend interface {
	CreateMessage(ctx context.Context, req api.CreateMessageRequest) (int64, error)
	CreateSequence(ctx context.Context, req api.CreateSequenceRequest) (int64, error)
	ContinueSequence(ctx context.Context, id int64, params api.ContinuationParams, fn api.RecordFunc) (*api.StreamResult, error)
	ExtendSequence(ctx context.Context, id int64, params api.ContinuationParams, fn api.RecordFunc) (*api.StreamResult, error)
}

// Ledger propagates sequence re-identification to every cached copy. The
// registry implements it. Rename is called without the session lock held
// and must not block on the renaming session.
type Ledger interface {
	Rename(clientID uuid.UUID, oldServerID, newServerID int64)
}

// Options configures a session.
type Options struct {
	// FlushInterval bounds the observable update cadence (default 80ms).
	FlushInterval time.Duration

	// Events receives observer callbacks.
	Events Events
}

// =============================================================================
// SESSION
// =============================================================================

// pendingResponse is the response-in-progress message object. It exists
// exactly while the session is Receiving and no durable identity has been
// assigned yet.
type pendingResponse struct {
	text      strings.Builder
	startedAt time.Time
}

// Session is the working state of at most one outstanding continuation
// request against one sequence.
type Session struct {
	mu       sync.Mutex
	clientID uuid.UUID
	seq      sequence.Sequence
	phase    Phase

	buf     *flushBuffer
	pending *pendingResponse
	seed    string
	status  string

	doneCount       int
	partialCount    int
	extraCount      int
	receivedContent bool

	backend Backend
	gate    *gate.Gate
	ledger  Ledger
	events  Events
	cancels cancelManager

	flushInterval time.Duration
}

// NewSession binds a session to a sequence. The ledger may be nil for
// standalone use.
func NewSession(seq sequence.Sequence, backend Backend, g *gate.Gate, ledger Ledger, opts Options) *Session {
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Session{
		clientID:      seq.ClientID,
		seq:           seq,
		phase:         PhaseIdle,
		buf:           newFlushBuffer(interval),
		backend:       backend,
		gate:          g,
		ledger:        ledger,
		events:        opts.Events,
		flushInterval: interval,
	}
}

// ClientID returns the stable client-local identifier of the bound
// sequence.
func (s *Session) ClientID() uuid.UUID {
	return s.clientID
}

// Sequence returns a snapshot of the session's view of its sequence.
func (s *Session) Sequence() sequence.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Phase returns the current lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Receiving reports whether a response is in flight. While true, the
// session's view of its sequence is authoritative.
func (s *Session) Receiving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseIdle
}

// Adopt replaces the session's sequence with a fresher copy, preserving
// the client-local identifier. It is refused while a request is
// outstanding, in which case it returns false.
func (s *Session) Adopt(seq sequence.Sequence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return false
	}
	seq.ClientID = s.clientID
	s.seq = seq
	return true
}

// Stop cancels the in-flight stream, if any. Partial content is committed
// as a Temporary message by the regular completion path; the admission
// permit is released there as well. Idempotent.
func (s *Session) Stop() {
	s.cancels.fire()
}

// =============================================================================
// SUBMISSION
// =============================================================================

type submitMode int

const (
	modeContinue submitMode = iota
	modeExtend
)

// Continue asks the backend to generate the next assistant turn.
func (s *Session) Continue(ctx context.Context, params api.ContinuationParams) error {
	return s.submit(ctx, modeContinue, "", params)
}

// Extend appends a new user message and then continues the sequence.
func (s *Session) Extend(ctx context.Context, userText string, params api.ContinuationParams) error {
	return s.submit(ctx, modeExtend, userText, params)
}

// submit is the single parameterized request path. Continue and extend
// differ only in the user-message step.
func (s *Session) submit(ctx context.Context, mode submitMode, userText string, params api.ContinuationParams) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.phase = PhaseSubmitting
	s.seed = params.SeedText
	s.buf = newFlushBuffer(s.flushInterval)
	s.resetCountersLocked()
	s.mu.Unlock()

	permit, err := s.gate.Acquire(ctx)
	if err != nil {
		s.abortSubmit(err)
		return err
	}
	// Released exactly once on every exit path below.
	defer permit.Release()

	if mode == modeExtend {
		if err := s.appendUserMessage(ctx, userText); err != nil {
			s.abortSubmit(err)
			return err
		}
	}

	serverID, err := s.ensurePersisted(ctx)
	if err != nil {
		s.abortSubmit(err)
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancels.set(cancel)
	defer s.cancels.clear()

	var res *api.StreamResult
	if mode == modeExtend {
		res, err = s.backend.ExtendSequence(streamCtx, serverID, params, s.apply)
	} else {
		res, err = s.backend.ContinueSequence(streamCtx, serverID, params, s.apply)
	}
	return s.finish(res, err)
}

// appendUserMessage persists the new user turn and appends it as a Stored
// message.
func (s *Session) appendUserMessage(ctx context.Context, text string) error {
	now := time.Now()
	id, err := s.backend.CreateMessage(ctx, api.CreateMessageRequest{
		Role:      sequence.RoleUser,
		Content:   text,
		CreatedAt: wire.FormatTime(now),
	})
	if err != nil {
		return err
	}

	msg := sequence.Stored{ID: id, Role: sequence.RoleUser, Content: text, CreatedAt: now}
	var fire fireList
	s.mu.Lock()
	s.seq = s.seq.Append(msg)
	fire.add(s.events.commit(msg))
	s.mu.Unlock()
	fire.run()
	return nil
}

// ensurePersisted gives a locally constructed sequence its first server
// identity before a stream can be opened against it.
func (s *Session) ensurePersisted(ctx context.Context) (int64, error) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	if seq.Persisted() {
		return seq.ServerID, nil
	}

	var current int64
	for i := len(seq.Messages) - 1; i >= 0; i-- {
		if st, ok := seq.Messages[i].(sequence.Stored); ok {
			current = st.ID
			break
		}
	}

	req := api.CreateSequenceRequest{
		UserPinned:         seq.Pinned,
		CurrentMessage:     current,
		GeneratedAt:        wire.FormatTime(seq.GeneratedAt),
		GenerationComplete: false,
	}
	if seq.HumanDesc != "" {
		desc := seq.HumanDesc
		req.HumanDesc = &desc
	}
	if len(seq.Ancestors) > 0 {
		parent := seq.Ancestors[0]
		req.ParentSequence = &parent
	}

	id, err := s.backend.CreateSequence(ctx, req)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	old := s.seq.ServerID
	s.seq = s.seq.WithServerID(id)
	s.mu.Unlock()

	if s.ledger != nil {
		s.ledger.Rename(s.clientID, old, id)
	}
	return id, nil
}

// abortSubmit handles failures before any stream bytes arrived: the
// session returns to Idle and the failure becomes visible, but nothing is
// retried automatically.
func (s *Session) abortSubmit(err error) {
	var fire fireList
	s.mu.Lock()
	if !api.IsEncode(err) && !errors.Is(err, context.Canceled) {
		msg := sequence.Temporary{
			Origin:    sequence.OriginServerError,
			Role:      sequence.RoleServerError,
			Content:   err.Error(),
			CreatedAt: time.Now(),
		}
		s.seq = s.seq.Append(msg)
		fire.add(s.events.commit(msg))
	}
	fire.add(s.events.status("error: " + err.Error()))
	s.resetCountersLocked()
	s.phase = PhaseIdle
	seq := s.seq
	s.mu.Unlock()

	fire.add(s.events.finish(seq, err))
	fire.run()
}

// =============================================================================
// RECORD APPLICATION
// =============================================================================

// apply processes one decoded record. It runs on the stream's goroutine,
// strictly in arrival order. All observer callbacks and ledger calls fire
// after the lock is released.
func (s *Session) apply(rec wire.Record) {
	var fire fireList
	var rename *[2]int64

	s.mu.Lock()

	// First record of any kind while Submitting: the response-in-progress
	// message comes into existence, pre-seeded with caller-supplied text.
	if s.phase == PhaseSubmitting {
		s.phase = PhaseReceiving
		s.resetCountersLocked()
		p := &pendingResponse{startedAt: time.Now()}
		p.text.WriteString(s.seed)
		s.pending = p
		fire.add(s.events.begin())
	}

	if rec.Status != nil {
		s.buf.setStatus(*rec.Status)
		s.flushLocked(&fire, false)
	}

	if rec.HasContent() {
		s.receivedContent = true
		// A mid-stream error commits and clears the pending response; if
		// the server keeps generating afterwards, a fresh one starts.
		if s.pending == nil {
			s.pending = &pendingResponse{startedAt: time.Now()}
		}
		s.buf.writeContent(rec.Message.Content)
		s.flushLocked(&fire, false)
	}

	if rec.PromptWithTemplating != nil {
		s.flushLocked(&fire, true)
		// The field arrives near the end of generation but semantically
		// describes the beginning, so it is timestamped at response start.
		at := time.Now()
		if s.pending != nil {
			at = s.pending.startedAt
		}
		msg := sequence.Temporary{
			Origin:    sequence.OriginPromptEcho,
			Role:      sequence.RolePromptEcho,
			Content:   *rec.PromptWithTemplating,
			CreatedAt: at,
		}
		s.seq = s.seq.Append(msg)
		fire.add(s.events.commit(msg))
	}

	if rec.Done {
		s.doneCount++
		s.flushLocked(&fire, true)
	}

	if rec.Error != nil {
		s.flushLocked(&fire, true)
		if msg, ok := s.commitPartialLocked(); ok {
			s.partialCount++
			fire.add(s.events.commit(msg))
		}
		errMsg := sequence.Temporary{
			Origin:    sequence.OriginServerError,
			Role:      sequence.RoleServerError,
			Content:   *rec.Error,
			CreatedAt: time.Now(),
		}
		s.seq = s.seq.Append(errMsg)
		s.extraCount++
		fire.add(s.events.commit(errMsg))
	}

	if rec.NewSequenceID != nil {
		s.flushLocked(&fire, true)
		old := s.seq.ServerID
		s.seq = s.seq.WithServerID(*rec.NewSequenceID)
		rename = &[2]int64{old, *rec.NewSequenceID}
	}

	if rec.NewMessageID != nil {
		s.flushLocked(&fire, true)
		if s.pending == nil {
			fire.add(s.events.anomaly("new_message_id " +
				strconv.FormatInt(*rec.NewMessageID, 10) + " with no response in progress"))
		} else {
			msg := sequence.Stored{
				ID:        *rec.NewMessageID,
				Role:      sequence.RoleAssistant,
				Content:   s.pending.text.String(),
				CreatedAt: s.pending.startedAt,
			}
			s.seq = s.seq.Insert(s.storedInsertIndexLocked(), msg)
			s.pending = nil
			fire.add(s.events.commit(msg))
		}
	}

	if rec.Autoname != nil && *rec.Autoname != s.seq.HumanDesc {
		first := s.seq.HumanDesc == ""
		s.seq = s.seq.WithDescription(*rec.Autoname)
		fire.add(s.events.autoname(*rec.Autoname, first))
	}

	s.mu.Unlock()

	if rename != nil && s.ledger != nil {
		s.ledger.Rename(s.clientID, rename[0], rename[1])
	}
	fire.run()
}

// storedInsertIndexLocked finds where a freshly committed Stored response
// belongs: before any trailing Temporary error/partial messages so errors
// visually trail the real response.
func (s *Session) storedInsertIndexLocked() int {
	msgs := s.seq.Messages
	i := len(msgs)
	for i > 0 {
		tmp, ok := msgs[i-1].(sequence.Temporary)
		if !ok {
			break
		}
		if tmp.Origin != sequence.OriginServerError && tmp.Origin != sequence.OriginPartialResponse {
			break
		}
		i--
	}
	return i
}

// flushLocked drains the buffer into the pending response and queues the
// observable updates.
func (s *Session) flushLocked(fire *fireList, force bool) {
	content, status, ok := s.buf.flush(force)
	if !ok {
		return
	}
	if content != "" && s.pending != nil {
		s.pending.text.WriteString(content)
		fire.add(s.events.content(s.pending.text.String()))
	}
	if status != "" && status != s.status {
		s.status = status
		fire.add(s.events.status(status))
	}
}

// commitPartialLocked commits the in-progress response as a Temporary
// partial message. If nothing beyond the caller-supplied seed ever
// arrived, the pending response is discarded silently.
func (s *Session) commitPartialLocked() (sequence.Message, bool) {
	if s.pending == nil {
		return nil, false
	}
	text := s.pending.text.String()
	startedAt := s.pending.startedAt
	s.pending = nil

	if text == s.seed {
		return nil, false
	}
	msg := sequence.Temporary{
		Origin:    sequence.OriginPartialResponse,
		Role:      sequence.RolePartial,
		Content:   text,
		CreatedAt: startedAt,
	}
	s.seq = s.seq.Append(msg)
	return msg, true
}

func (s *Session) resetCountersLocked() {
	s.doneCount = 0
	s.partialCount = 0
	s.extraCount = 0
	s.receivedContent = false
}

// =============================================================================
// COMPLETION
// =============================================================================

// finish runs once per submission, on success, failure, and cancellation
// alike. Partial content already streamed is never discarded silently.
func (s *Session) finish(res *api.StreamResult, err error) error {
	var fire fireList

	s.mu.Lock()
	s.flushLocked(&fire, true)

	canceled := errors.Is(err, context.Canceled)

	switch {
	case err != nil:
		if msg, ok := s.commitPartialLocked(); ok {
			fire.add(s.events.commit(msg))
		}
		if !canceled {
			msg := sequence.Temporary{
				Origin:    sequence.OriginServerError,
				Role:      sequence.RoleServerError,
				Content:   err.Error(),
				CreatedAt: time.Now(),
			}
			s.seq = s.seq.Append(msg)
			fire.add(s.events.commit(msg))
			fire.add(s.events.status("error: " + err.Error()))
		}

	case s.doneCount == 0 && !s.receivedContent:
		s.pending = nil
		msg := sequence.Temporary{
			Origin:    sequence.OriginNoData,
			Role:      sequence.RoleNoData,
			Content:   "the server closed the stream without sending any response data",
			CreatedAt: time.Now(),
		}
		s.seq = s.seq.Append(msg)
		fire.add(s.events.commit(msg))

	case s.doneCount == 0:
		if msg, ok := s.commitPartialLocked(); ok {
			fire.add(s.events.commit(msg))
		}
		msg := sequence.Temporary{
			Origin:    sequence.OriginInterrupted,
			Role:      sequence.RoleInterrupted,
			Content:   "the stream ended before the server signalled completion",
			CreatedAt: time.Now(),
		}
		s.seq = s.seq.Append(msg)
		fire.add(s.events.commit(msg))

	default:
		if s.doneCount > 1 {
			fire.add(s.events.anomaly("protocol anomaly: " +
				strconv.Itoa(s.doneCount) + " done signals in one stream"))
		}
		// Done arrived but no durable identity did; keep the content.
		if msg, ok := s.commitPartialLocked(); ok {
			fire.add(s.events.commit(msg))
		}
	}

	if res != nil {
		if res.CorruptChunks > 0 {
			fire.add(s.events.anomaly("dropped " + strconv.Itoa(res.CorruptChunks) + " corrupt stream chunks"))
		}
		if res.TrailingBytes > 0 {
			fire.add(s.events.anomaly("discarded " + strconv.Itoa(res.TrailingBytes) + " undecoded trailing bytes"))
		}
	}

	s.resetCountersLocked()
	s.pending = nil
	s.status = ""
	s.buf.reset()
	s.phase = PhaseIdle
	seq := s.seq
	s.mu.Unlock()

	fire.add(s.events.finish(seq, err))
	fire.run()
	return err
}
