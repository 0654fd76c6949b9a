package eventflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventflow/pkg/eventflow/retry"
)

// Event is a unit of work with a lifecycle state machine.
//
// Implement Event by embedding BaseEvent and defining Run:
//
//	type SaveDoc struct {
//	    eventflow.BaseEvent
//	    doc *Doc
//	}
//
//	func (e *SaveDoc) Run(ctx context.Context) (any, error) {
//	    return e.doc.Save(ctx)
//	}
type Event interface {
	// Run performs the work. The context is cancelled when the event is
	// cancelled or times out; work should return promptly when it is.
	Run(ctx context.Context) (any, error)

	ID() string
	DebugKey() string
	Priority() int
	State() State

	// Cancel settles a non-terminal event as Cancel.
	Cancel(reason string, retriable bool)
	// Pause keeps a queued event in place without starting it.
	Pause()
	// Resume lifts a Pause.
	Resume()
	// Listen subscribes to state changes until the next terminal state.
	Listen(l Listener) (stop func())

	core() *BaseEvent
}

// Enabler lets an event opt out of submission.
// Disabled events are rejected by AddEventToQueue without side effects.
type Enabler interface {
	IsEnabled() bool
}

// Undoable events capture state before running and can reverse their effect.
// Successful undoable events are recorded in the manager's history.
type Undoable interface {
	Event
	// CaptureState runs before the work of every attempt.
	CaptureState(m *Manager)
	// Undo reverses the effect of the last successful run.
	Undo(m *Manager) error
}

// Redoer overrides the default redo, which re-runs the event's work.
type Redoer interface {
	Redo(m *Manager) error
}

// Merger lets consecutive history entries coalesce into one.
type Merger interface {
	CanMergeWith(other Undoable) bool
	MergeWith(other Undoable) Undoable
}

// Listener receives event state changes. Nil callbacks are skipped.
// A listener detaches itself after delivering a terminal state.
type Listener struct {
	OnQueue    func()
	OnStart    func()
	OnProgress func(Progress)
	OnRetry    func(Retry)
	OnDone     func(data any)
	OnCancel   func(Cancel)
	OnError    func(*EventError)
}

func (l *Listener) deliver(s State) {
	switch s := s.(type) {
	case Queued:
		if l.OnQueue != nil {
			l.OnQueue()
		}
	case Started:
		if l.OnStart != nil {
			l.OnStart()
		}
	case Progress:
		if l.OnProgress != nil {
			l.OnProgress(s)
		}
	case Retry:
		if l.OnRetry != nil {
			l.OnRetry(s)
		}
	case Complete:
		if l.OnDone != nil {
			l.OnDone(s.Data)
		}
	case Cancel:
		if l.OnCancel != nil {
			l.OnCancel(s)
		}
	case Failed:
		if l.OnError != nil {
			l.OnError(s.Err)
		}
	}
}

// EventOption configures an event.
type EventOption func(*BaseEvent)

// WithPriority sets the scheduling priority. Higher runs first. Default: 0
func WithPriority(p int) EventOption {
	return func(b *BaseEvent) {
		b.priority = p
	}
}

// WithDebugKey sets a human-readable key used in logs, metrics and errors.
func WithDebugKey(key string) EventOption {
	return func(b *BaseEvent) {
		b.debugKey = key
	}
}

// WithToken gates the event on a shared token.
func WithToken(t *Token) EventOption {
	return func(b *BaseEvent) {
		b.token = t
	}
}

// WithTimeout cancels the event with reason "timed out" when an attempt
// runs longer than d. Zero disables the timeout.
func WithTimeout(d time.Duration) EventOption {
	return func(b *BaseEvent) {
		if d >= 0 {
			b.timeout = d
		}
	}
}

// WithRetryPolicy attaches a retry policy.
func WithRetryPolicy(p *retry.Policy) EventOption {
	return func(b *BaseEvent) {
		b.retryPolicy = p
	}
}

type listenerEntry struct {
	l Listener
}

// BaseEvent carries the lifecycle shared by all events.
// Embed it in event types; the zero value is ready to use.
type BaseEvent struct {
	mu sync.Mutex

	id          string
	priority    int
	debugKey    string
	token       *Token
	timeout     time.Duration
	retryPolicy *retry.Policy

	state     State
	attempt   int
	retries   int
	paused    bool
	seq       uint64
	gen       uint64
	cancelRun context.CancelFunc
	future    *Future
	manager   *Manager
	self      Event
	listeners []*listenerEntry
}

func (b *BaseEvent) core() *BaseEvent { return b }

// Apply sets event options. Call it before the first submission.
func (b *BaseEvent) Apply(opts ...EventOption) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, opt := range opts {
		opt(b)
	}
}

// ID returns the event's unique identifier.
func (b *BaseEvent) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id == "" {
		b.id = uuid.NewString()
	}
	return b.id
}

// Priority returns the scheduling priority.
func (b *BaseEvent) Priority() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.priority
}

// DebugKey returns the debug key.
func (b *BaseEvent) DebugKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debugKey
}

// Token returns the gating token, or nil.
func (b *BaseEvent) Token() *Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// Timeout returns the per-attempt timeout, zero for none.
func (b *BaseEvent) Timeout() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeout
}

// RetryPolicy returns the retry policy, or nil.
func (b *BaseEvent) RetryPolicy() *retry.Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retryPolicy
}

// State returns the current state; nil until first submitted.
func (b *BaseEvent) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Attempt returns the number of executions in the current submission.
func (b *BaseEvent) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Future returns the result handle of the current submission, or nil.
func (b *BaseEvent) Future() *Future {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.future
}

// IsPaused reports whether the event or its token is paused.
func (b *BaseEvent) IsPaused() bool {
	b.mu.Lock()
	paused, token := b.paused, b.token
	b.mu.Unlock()
	return paused || token.IsPaused()
}

// CanRetry reports whether submitting the event would run it again.
// False while it is queued, paused or running, and after a non-retriable cancel.
func (b *BaseEvent) CanRetry() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if isInFlight(b.state) {
		return false
	}
	if c, ok := b.state.(Cancel); ok && !c.Retriable {
		return false
	}
	return true
}

// Listen subscribes l to state changes. The returned function detaches it.
func (b *BaseEvent) Listen(l Listener) (stop func()) {
	entry := &listenerEntry{l: l}
	b.mu.Lock()
	b.listeners = append(b.listeners, entry)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, le := range b.listeners {
			if le == entry {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Cancel settles the event as Cancel. Running work is not interrupted;
// its context is cancelled and its result discarded.
func (b *BaseEvent) Cancel(reason string, retriable bool) {
	b.mu.Lock()
	if IsTerminal(b.state) {
		b.mu.Unlock()
		return
	}
	cancelRun := b.cancelRun
	b.cancelRun = nil
	b.gen++
	mgr, self := b.manager, b.self
	dispatch := b.setLocked(Cancel{Reason: reason, Retriable: retriable})
	b.mu.Unlock()

	if cancelRun != nil {
		cancelRun()
	}
	dispatch()
	if mgr != nil && self != nil {
		mgr.eventCancelled(self, reason)
	}
}

// Pause keeps a queued event at its queue position without starting it.
// Pausing running work has no effect on the current attempt.
func (b *BaseEvent) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
	if _, ok := b.state.(Queued); ok {
		b.state = Paused{}
	}
}

// Resume lifts a Pause and wakes the owning manager.
func (b *BaseEvent) Resume() {
	b.mu.Lock()
	b.paused = false
	if _, ok := b.state.(Paused); ok {
		b.state = Queued{}
	}
	mgr := b.manager
	b.mu.Unlock()
	if mgr != nil {
		mgr.signal()
	}
}

// setLocked moves to s and returns a function that notifies listeners and,
// for terminal states, resolves the future. Call the result after unlocking.
func (b *BaseEvent) setLocked(s State) func() {
	b.state = s
	entries := make([]*listenerEntry, len(b.listeners))
	copy(entries, b.listeners)
	var fut *Future
	if IsTerminal(s) {
		b.listeners = nil
		fut = b.future
	}
	return func() {
		for _, le := range entries {
			le.l.deliver(s)
		}
		if fut != nil {
			fut.resolve(s)
		}
	}
}

type submitStatus int

const (
	submitFresh submitStatus = iota
	submitInFlight
	submitRejected
)

// submitStatus classifies a submission without changing the event.
func (b *BaseEvent) submitStatus() (submitStatus, *Future) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.state.(Cancel); ok && !c.Retriable {
		return submitRejected, nil
	}
	if isInFlight(b.state) {
		return submitInFlight, b.future
	}
	return submitFresh, nil
}

// reset prepares a fresh submission owned by m and moves to Queued
// (or Paused). The returned dispatch must run after all locks are released.
func (b *BaseEvent) reset(m *Manager, self Event, seq uint64) (*Future, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id == "" {
		b.id = uuid.NewString()
	}
	b.gen++
	b.attempt = 0
	b.retries = 0
	b.cancelRun = nil
	b.future = newFuture()
	b.manager = m
	b.self = self
	b.seq = seq
	b.state = nil
	if b.paused {
		b.state = Paused{}
		return b.future, func() {}
	}
	return b.future, b.setLocked(Queued{})
}

// requeue moves a retry-pending event back to Queued.
func (b *BaseEvent) requeue(seq uint64) (func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.state.(Retry); !ok {
		return nil, false
	}
	b.seq = seq
	if b.paused {
		b.state = Paused{}
		return func() {}, true
	}
	return b.setLocked(Queued{}), true
}

// begin starts an attempt. It returns false if the event settled while queued.
func (b *BaseEvent) begin(parent context.Context) (context.Context, uint64, func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !isInFlight(b.state) {
		return nil, 0, nil, false
	}
	b.gen++
	b.attempt++
	ctx, cancel := context.WithCancel(parent)
	b.cancelRun = cancel
	return ctx, b.gen, b.setLocked(Started{}), true
}

// settleIf moves to s only if attempt gen is still current.
func (b *BaseEvent) settleIf(gen uint64, s State) bool {
	b.mu.Lock()
	if gen != b.gen || !isInFlight(b.state) {
		b.mu.Unlock()
		return false
	}
	if !isProgress(s) && b.cancelRun != nil {
		b.cancelRun()
		b.cancelRun = nil
	}
	dispatch := b.setLocked(s)
	b.mu.Unlock()
	dispatch()
	return true
}

// isCurrent reports whether attempt gen has not been superseded or cancelled.
func (b *BaseEvent) isCurrent(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return gen == b.gen && isInFlight(b.state)
}

// takeRetry consumes one retry if policy allows another attempt after err.
func (b *BaseEvent) takeRetry(err error) (index int, delay time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	index = b.retries
	if !b.retryPolicy.ShouldRetry(index, err) {
		return index, 0, false
	}
	b.retries++
	return index, b.retryPolicy.Delay(index), true
}

func (b *BaseEvent) enqueueSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

func isProgress(s State) bool {
	_, ok := s.(Progress)
	return ok
}

// WorkFunc is the work performed by closure events.
type WorkFunc func(ctx context.Context) (any, error)

// FuncEvent runs a closure.
type FuncEvent struct {
	BaseEvent
	fn WorkFunc
}

// NewEvent creates an event that runs fn.
//
// Example:
//
//	e := eventflow.NewEvent(func(ctx context.Context) (any, error) {
//	    return 42, nil
//	}, eventflow.WithDebugKey("answer"))
func NewEvent(fn WorkFunc, opts ...EventOption) *FuncEvent {
	e := &FuncEvent{fn: fn}
	e.Apply(opts...)
	return e
}

// Run calls the closure.
func (e *FuncEvent) Run(ctx context.Context) (any, error) {
	return e.fn(ctx)
}

// UndoableFuncEvent runs a closure and reverses it with another.
type UndoableFuncEvent struct {
	BaseEvent
	do      WorkFunc
	undo    func(m *Manager) error
	capture func(m *Manager)
}

var _ Undoable = (*UndoableFuncEvent)(nil)

// NewUndoableEvent creates an undoable event from a work closure and its inverse.
func NewUndoableEvent(do WorkFunc, undo func(m *Manager) error, opts ...EventOption) *UndoableFuncEvent {
	e := &UndoableFuncEvent{do: do, undo: undo}
	e.Apply(opts...)
	return e
}

// OnCapture sets a hook run before every attempt, typically to snapshot
// the state that Undo restores.
func (e *UndoableFuncEvent) OnCapture(fn func(m *Manager)) *UndoableFuncEvent {
	e.capture = fn
	return e
}

// Run calls the work closure.
func (e *UndoableFuncEvent) Run(ctx context.Context) (any, error) {
	return e.do(ctx)
}

// CaptureState calls the OnCapture hook, if any.
func (e *UndoableFuncEvent) CaptureState(m *Manager) {
	if e.capture != nil {
		e.capture(m)
	}
}

// Undo calls the inverse closure.
func (e *UndoableFuncEvent) Undo(m *Manager) error {
	if e.undo == nil {
		return nil
	}
	return e.undo(m)
}
