package eventflow

import (
	"sort"
	"sync"
	"time"
)

// Cancellation reasons used by the manager.
const (
	ReasonTimedOut  = "timed out"
	ReasonQueueFull = "dropped: queue full"
	ReasonCleared   = "cleared"
	ReasonDisposed  = "disposed"
)

// Manager owns a priority queue of events and drives their execution under
// a scheduling mode, applying backpressure, pause state and retry policies.
//
// A Manager runs a background drain goroutine; call Dispose to stop it.
// All methods are safe for concurrent use.
type Manager struct {
	cfg managerConfig

	mu           sync.Mutex
	queue        []Event
	seq          uint64
	active       int
	running      map[*BaseEvent]Event
	paused       bool
	disposed     bool
	retryTimers  map[*BaseEvent]pendingRetry
	starts       []time.Time
	rateTimer    Timer
	rateTimerSeq uint64
	tokenSubs    map[*Token]func()
	listeners    map[int]func()
	nextListener int

	wake chan struct{}
	stop chan struct{}
}

// pendingRetry is an event waiting for its backoff delay to elapse.
type pendingRetry struct {
	event Event
	timer Timer
	mode  execMode
}

// execMode describes how an attempt was started.
type execMode struct {
	// direct attempts bypass the queue and retry in place.
	direct bool
	// record successful undoable events in history.
	record bool
}

var queuedExec = execMode{record: true}

// Stats is a point-in-time view of a manager.
type Stats struct {
	Mode         string
	Queued       int
	Active       int
	RetryPending int
	Paused       bool
	Disposed     bool
}

// NewManager creates a manager and starts its drain goroutine.
//
// Example:
//
//	m := eventflow.NewManager(
//	    eventflow.WithMode(eventflow.RateLimited{Limit: 5, Window: time.Second}),
//	    eventflow.WithMaxQueueSize(1000, eventflow.DropOldest),
//	)
//	defer m.Dispose()
func NewManager(opts ...ManagerOption) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Manager{
		cfg:         cfg,
		running:     make(map[*BaseEvent]Event),
		retryTimers: make(map[*BaseEvent]pendingRetry),
		tokenSubs:   make(map[*Token]func()),
		listeners:   make(map[int]func()),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	go m.loop()
	return m
}

// loop drains the queue whenever it is signalled.
func (m *Manager) loop() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.wake:
			m.drain()
		}
	}
}

// signal wakes the drain loop without blocking.
func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// AddEventToQueue submits e and returns the Future of its submission.
//
// It returns nil, nil when the event is disabled, was cancelled
// non-retriably, or was rejected by the DropNewest policy. An event that is
// already queued or running returns its current Future. A settled event is
// reset and runs again.
//
// In Sequential mode, an event submitted while the manager is idle and
// unpaused runs on the caller's goroutine, unless it is paused or has a
// timeout; its Future is then resolved on return.
func (m *Manager) AddEventToQueue(e Event) (*Future, error) {
	if e == nil {
		return nil, nil
	}
	if en, ok := e.(Enabler); ok && !en.IsEnabled() {
		return nil, nil
	}
	b := e.core()

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, ErrManagerDisposed
	}
	status, current := b.submitStatus()
	switch status {
	case submitRejected:
		m.mu.Unlock()
		return nil, nil
	case submitInFlight:
		m.mu.Unlock()
		return current, nil
	}

	var evicted Event
	if m.fullLocked() {
		switch m.cfg.overflowPolicy {
		case DropOldest:
			evicted = m.evictOldestLocked()
		case OverflowError:
			err := &QueueOverflowError{
				QueueSize:    len(m.queue),
				MaxQueueSize: m.cfg.maxQueueSize,
				Event:        e,
			}
			m.mu.Unlock()
			m.cfg.metrics.RecordEventDropped(m.cfg.baseCtx, m.cfg.overflowPolicy.String())
			return nil, err
		default:
			m.mu.Unlock()
			m.cfg.metrics.RecordEventDropped(m.cfg.baseCtx, m.cfg.overflowPolicy.String())
			return nil, nil
		}
	}

	m.seq++
	fut, dispatch := b.reset(m, e, m.seq)
	inline := m.canRunInlineLocked(b)
	if inline {
		m.active++
	} else {
		m.insertLocked(e)
	}
	m.watchTokenLocked(b.Token())
	queueLen := len(m.queue)
	m.mu.Unlock()

	if evicted != nil {
		m.cfg.metrics.RecordEventDropped(m.cfg.baseCtx, m.cfg.overflowPolicy.String())
		evicted.Cancel(ReasonQueueFull, true)
	}
	dispatch()
	m.cfg.logger.LogQueued(e)
	m.cfg.metrics.RecordEventQueued(m.cfg.baseCtx, e.DebugKey(), queueLen)

	if inline {
		m.execute(e, queuedExec)
		m.release()
		return fut, nil
	}
	m.notifyListeners()
	m.signal()
	return fut, nil
}

// canRunInlineLocked reports whether a fresh submission may run on the
// caller's goroutine.
func (m *Manager) canRunInlineLocked(b *BaseEvent) bool {
	if _, ok := m.cfg.mode.(Sequential); !ok {
		return false
	}
	if m.paused || len(m.queue) > 0 || m.active > 0 {
		return false
	}
	return !b.IsPaused() && b.Timeout() == 0
}

func (m *Manager) fullLocked() bool {
	return m.cfg.maxQueueSize > 0 && len(m.queue) >= m.cfg.maxQueueSize
}

// insertLocked places e after every entry of equal or higher priority.
func (m *Manager) insertLocked(e Event) {
	p := e.Priority()
	i := sort.Search(len(m.queue), func(i int) bool {
		return m.queue[i].Priority() < p
	})
	m.queue = append(m.queue, nil)
	copy(m.queue[i+1:], m.queue[i:])
	m.queue[i] = e
}

// removeLocked drops e from the queue and reports whether it was present.
func (m *Manager) removeLocked(e Event) bool {
	b := e.core()
	for i, q := range m.queue {
		if q.core() == b {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// evictOldestLocked removes the longest-queued event.
func (m *Manager) evictOldestLocked() Event {
	if len(m.queue) == 0 {
		return nil
	}
	oldest := 0
	oldestSeq := m.queue[0].core().enqueueSeq()
	for i := 1; i < len(m.queue); i++ {
		if s := m.queue[i].core().enqueueSeq(); s < oldestSeq {
			oldest, oldestSeq = i, s
		}
	}
	e := m.queue[oldest]
	m.queue = append(m.queue[:oldest], m.queue[oldest+1:]...)
	return e
}

// watchTokenLocked subscribes to t once per manager.
func (m *Manager) watchTokenLocked(t *Token) {
	if t == nil {
		return
	}
	if _, ok := m.tokenSubs[t]; ok {
		return
	}
	m.tokenSubs[t] = t.AddListener(func() { m.onTokenChanged(t) })
}

// onTokenChanged cancels everything gated by a cancelled token and wakes
// the drain loop for pause changes.
func (m *Manager) onTokenChanged(t *Token) {
	cd := t.CancelData()
	if cd == nil {
		m.signal()
		return
	}

	m.mu.Lock()
	var victims []Event
	for _, e := range m.queue {
		if e.core().Token() == t {
			victims = append(victims, e)
		}
	}
	for _, pr := range m.retryTimers {
		if pr.event.core().Token() == t {
			victims = append(victims, pr.event)
		}
	}
	for _, e := range m.running {
		if e.core().Token() == t {
			victims = append(victims, e)
		}
	}
	m.mu.Unlock()

	for _, e := range victims {
		e.Cancel(cd.Reason, cd.Retriable)
	}
}

// eventCancelled is called by an event owned by m after it settled as Cancel.
func (m *Manager) eventCancelled(e Event, reason string) {
	b := e.core()
	m.mu.Lock()
	removed := m.removeLocked(e)
	if pr, ok := m.retryTimers[b]; ok {
		pr.timer.Stop()
		delete(m.retryTimers, b)
	}
	m.mu.Unlock()

	m.cfg.logger.LogCancelled(e, reason)
	m.cfg.metrics.RecordEventCancelled(m.cfg.baseCtx, e.DebugKey(), reason)
	if removed {
		m.notifyListeners()
	}
	m.signal()
}

// release frees the execution slot taken by next or an inline run.
func (m *Manager) release() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	m.signal()
}

// PauseEvents stops new starts. Running events continue.
func (m *Manager) PauseEvents() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// ResumeEvents lifts PauseEvents and restarts draining.
func (m *Manager) ResumeEvents() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.signal()
}

// ClearEvents cancels (retriably) every queued and retry-pending event
// and empties the queue. An empty reason defaults to "cleared".
func (m *Manager) ClearEvents(reason string) {
	if reason == "" {
		reason = ReasonCleared
	}
	m.mu.Lock()
	victims := make([]Event, 0, len(m.queue)+len(m.retryTimers))
	victims = append(victims, m.queue...)
	m.queue = nil
	for b, pr := range m.retryTimers {
		pr.timer.Stop()
		victims = append(victims, pr.event)
		delete(m.retryTimers, b)
	}
	if m.rateTimer != nil {
		m.rateTimer.Stop()
		m.rateTimer = nil
	}
	m.mu.Unlock()

	for _, e := range victims {
		e.Cancel(reason, true)
	}
	if len(victims) > 0 {
		m.notifyListeners()
	}
}

// Dispose clears the queue, stops timers and the drain goroutine, and
// detaches token listeners without changing token state. Later submissions
// fail with ErrManagerDisposed. Dispose is idempotent.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	subs := m.tokenSubs
	m.tokenSubs = make(map[*Token]func())
	close(m.stop)
	m.mu.Unlock()

	m.ClearEvents(ReasonDisposed)
	for _, remove := range subs {
		remove()
	}
}

// HasEvents reports whether any event is queued.
func (m *Manager) HasEvents() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) > 0
}

// QueueLength returns the number of queued events.
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// ActiveCount returns the number of events currently executing.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// IsPaused reports whether PauseEvents is in effect.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// IsDisposed reports whether Dispose was called.
func (m *Manager) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Mode returns the scheduling mode.
func (m *Manager) Mode() Mode {
	return m.cfg.mode
}

// History returns the attached undo/redo history, or nil.
func (m *Manager) History() *UndoRedoManager {
	return m.cfg.history
}

// Queued returns the queued events in start order.
func (m *Manager) Queued() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.queue))
	copy(out, m.queue)
	return out
}

// Snapshot returns current queue statistics.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Mode:         m.cfg.mode.String(),
		Queued:       len(m.queue),
		Active:       m.active,
		RetryPending: len(m.retryTimers),
		Paused:       m.paused,
		Disposed:     m.disposed,
	}
}

// AddListener registers fn to be called whenever the queue changes.
// The returned function removes it.
func (m *Manager) AddListener(fn func()) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notifyListeners() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	notify(fns)
}
