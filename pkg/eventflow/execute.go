package eventflow

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
)

// drain starts eligible events until the queue is empty, the manager is
// paused, or the mode has no capacity left.
//
// Sequential mode runs events on the drain goroutine, yielding after
// MaxBatchSize events or once FrameBudget has elapsed. Other modes start
// each event on its own goroutine.
func (m *Manager) drain() {
	_, sequential := m.cfg.mode.(Sequential)
	tickStart := m.cfg.clock.Now()
	ran := 0

	for {
		e := m.next()
		if e == nil {
			return
		}
		if !sequential {
			go func() {
				m.execute(e, queuedExec)
				m.release()
			}()
			continue
		}

		m.execute(e, queuedExec)
		m.release()
		ran++
		budgetSpent := m.cfg.frameBudget > 0 && m.cfg.clock.Now().Sub(tickStart) >= m.cfg.frameBudget
		if ran >= m.cfg.maxBatchSize || budgetSpent {
			m.cfg.yield()
			tickStart = m.cfg.clock.Now()
			ran = 0
		}
	}
}

// next pops the first startable event and takes an execution slot for it.
// Paused events keep their position. Events whose token was cancelled
// are removed and settled as Cancel.
func (m *Manager) next() Event {
	var settle []Event

	m.mu.Lock()
	e := m.nextLocked(&settle)
	m.mu.Unlock()

	for _, s := range settle {
		if cd := s.core().Token().CancelData(); cd != nil {
			s.Cancel(cd.Reason, cd.Retriable)
		}
	}
	if e != nil || len(settle) > 0 {
		m.notifyListeners()
	}
	return e
}

func (m *Manager) nextLocked(settle *[]Event) Event {
	if m.paused || m.disposed || len(m.queue) == 0 {
		return nil
	}
	if !m.hasCapacityLocked() {
		return nil
	}
	for i := 0; i < len(m.queue); i++ {
		e := m.queue[i]
		b := e.core()
		if b.Token().IsCancelled() {
			*settle = append(*settle, e)
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			i--
			continue
		}
		if b.IsPaused() {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.active++
		if _, ok := m.cfg.mode.(RateLimited); ok {
			m.starts = append(m.starts, m.cfg.clock.Now())
		}
		return e
	}
	return nil
}

// hasCapacityLocked reports whether the mode allows another start now.
// In RateLimited mode a full window arms a single timer that wakes the
// drain loop when the oldest start leaves the window.
func (m *Manager) hasCapacityLocked() bool {
	switch mode := m.cfg.mode.(type) {
	case Sequential:
		return m.active == 0
	case Concurrent:
		return mode.MaxConcurrency <= 0 || m.active < mode.MaxConcurrency
	case RateLimited:
		now := m.cfg.clock.Now()
		cutoff := now.Add(-mode.Window)
		expired := 0
		for expired < len(m.starts) && !m.starts[expired].After(cutoff) {
			expired++
		}
		m.starts = m.starts[expired:]
		if len(m.starts) < mode.Limit {
			return true
		}
		if m.rateTimer == nil {
			wait := m.starts[0].Add(mode.Window).Sub(now)
			m.rateTimerSeq++
			seq := m.rateTimerSeq
			m.rateTimer = m.cfg.clock.AfterFunc(wait, func() { m.onRateTimer(seq) })
		}
		return false
	default:
		return false
	}
}

// onRateTimer forgets the rate timer unless a newer one has replaced it.
func (m *Manager) onRateTimer(seq uint64) {
	m.mu.Lock()
	if m.rateTimerSeq == seq {
		m.rateTimer = nil
	}
	m.mu.Unlock()
	m.signal()
}

// execute runs one attempt of e and settles or retries it.
func (m *Manager) execute(e Event, mode execMode) {
	b := e.core()
	if cd := b.Token().CancelData(); cd != nil {
		e.Cancel(cd.Reason, cd.Retriable)
		return
	}

	runCtx, gen, dispatch, ok := b.begin(m.cfg.baseCtx)
	if !ok {
		return
	}
	id, key, attempt := e.ID(), e.DebugKey(), b.Attempt()
	ctx := withRun(runCtx, m, e, gen)
	ctx, span := m.cfg.spans.StartEventSpan(ctx, id, key, attempt)
	ctx = withLogger(ctx, observability.EnrichLogger(m.cfg.slog, id, key, attempt))

	m.mu.Lock()
	m.running[b] = e
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.running, b)
		m.mu.Unlock()
	}()

	dispatch()
	m.cfg.logger.LogStarted(e)
	start := m.cfg.clock.Now()

	data, finished, err := m.runAttempt(ctx, e, b.Timeout())

	m.cfg.metrics.RecordEventExecution(ctx, key, m.cfg.clock.Now().Sub(start), err)
	m.cfg.spans.EndSpanWithError(span, err)
	if !finished || !b.isCurrent(gen) {
		return
	}
	if err == nil {
		m.complete(e, gen, data, mode)
		return
	}
	m.fail(e, gen, err, mode)
}

// runAttempt invokes the work, racing it against the timeout when one is
// set. finished is false when the attempt timed out or was cancelled
// before the work returned.
func (m *Manager) runAttempt(ctx context.Context, e Event, timeout time.Duration) (data any, finished bool, err error) {
	if timeout <= 0 {
		data, err = m.invoke(ctx, e)
		return data, true, err
	}

	type result struct {
		data any
		err  error
	}
	done := make(chan result, 1)
	expired := make(chan struct{})
	timer := m.cfg.clock.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()
	go func() {
		d, err := m.invoke(ctx, e)
		done <- result{data: d, err: err}
	}()

	select {
	case r := <-done:
		return r.data, true, r.err
	case <-expired:
		e.Cancel(ReasonTimedOut, true)
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, nil
	}
}

// invoke captures undo state and calls Run, converting panics to *PanicError.
func (m *Manager) invoke(ctx context.Context, e Event) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = &PanicError{
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	if u, ok := e.(Undoable); ok {
		u.CaptureState(m)
	}
	return e.Run(ctx)
}

func (m *Manager) complete(e Event, gen uint64, data any, mode execMode) {
	if mode.record && m.cfg.history != nil {
		if u, ok := e.(Undoable); ok {
			m.cfg.history.Record(u)
		}
	}
	m.cfg.logger.LogCompleted(e, data)
	e.core().settleIf(gen, Complete{Data: data})
}

func (m *Manager) fail(e Event, gen uint64, err error, mode execMode) {
	b := e.core()
	index, delay, retrying := b.takeRetry(err)
	if retrying {
		if !b.settleIf(gen, Retry{Attempt: index + 1, Delay: delay}) {
			return
		}
		if rl, ok := m.cfg.logger.(RetryLogger); ok {
			rl.LogRetry(e, index+1, delay, err)
		}
		m.cfg.metrics.RecordEventRetry(m.cfg.baseCtx, e.DebugKey(), index+1)
		m.scheduleRetry(e, delay, mode)
		return
	}

	evErr := &EventError{
		Event:   e,
		Err:     err,
		Attempt: b.Attempt(),
		manager: m,
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		evErr.Stack = pe.Stack
	}
	m.cfg.logger.LogError(e, evErr)
	b.settleIf(gen, Failed{Err: evErr})
}

// scheduleRetry re-runs e after delay. Queued events go back through the
// queue; direct events run again on the timer goroutine.
func (m *Manager) scheduleRetry(e Event, delay time.Duration, mode execMode) {
	b := e.core()
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		e.Cancel(ReasonDisposed, true)
		return
	}
	timer := m.cfg.clock.AfterFunc(delay, func() { m.fireRetry(b) })
	m.retryTimers[b] = pendingRetry{event: e, timer: timer, mode: mode}
	m.mu.Unlock()
}

func (m *Manager) fireRetry(b *BaseEvent) {
	m.mu.Lock()
	pr, ok := m.retryTimers[b]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.retryTimers, b)
	e := pr.event

	if pr.mode.direct {
		m.seq++
		dispatch, ok := b.requeue(m.seq)
		m.mu.Unlock()
		if ok {
			dispatch()
			m.execute(e, pr.mode)
		}
		return
	}

	var evicted Event
	if m.fullLocked() {
		if m.cfg.overflowPolicy != DropOldest {
			m.mu.Unlock()
			m.cfg.metrics.RecordEventDropped(m.cfg.baseCtx, m.cfg.overflowPolicy.String())
			e.Cancel(ReasonQueueFull, true)
			return
		}
		evicted = m.evictOldestLocked()
	}
	m.seq++
	dispatch, ok := b.requeue(m.seq)
	if ok {
		m.insertLocked(e)
	}
	m.mu.Unlock()

	if evicted != nil {
		m.cfg.metrics.RecordEventDropped(m.cfg.baseCtx, m.cfg.overflowPolicy.String())
		evicted.Cancel(ReasonQueueFull, true)
	}
	if ok {
		dispatch()
		m.notifyListeners()
		m.signal()
	}
}

// ProcessEvent runs e immediately on the caller's goroutine through the
// same state machine, without touching the queue or the mode's limits.
// onDone receives the result; onError receives an *EventError or a
// *CancelError. Either callback may be nil.
//
// It returns nil if the event is disabled, cancelled non-retriably, or the
// manager is disposed (onError then receives ErrManagerDisposed).
func (m *Manager) ProcessEvent(e Event, onDone func(data any), onError func(err error)) *Future {
	fut, err := m.processDirect(e, true, onDone, onError)
	if err != nil && onError != nil {
		onError(err)
	}
	return fut
}

func (m *Manager) processDirect(e Event, record bool, onDone func(any), onError func(error)) (*Future, error) {
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
	m.seq++
	fut, dispatch := b.reset(m, e, m.seq)
	m.watchTokenLocked(b.Token())
	m.mu.Unlock()

	if onDone != nil || onError != nil {
		e.Listen(callbackListener(onDone, onError))
	}
	dispatch()
	m.cfg.logger.LogQueued(e)
	m.execute(e, execMode{direct: true, record: record})
	return fut, nil
}

// callbackListener adapts result callbacks to a Listener.
func callbackListener(onDone func(any), onError func(error)) Listener {
	l := Listener{OnDone: onDone}
	if onError != nil {
		l.OnError = func(err *EventError) { onError(err) }
		l.OnCancel = func(c Cancel) {
			onError(&CancelError{Reason: c.Reason, Retriable: c.Retriable})
		}
	}
	return l
}

// rerun executes e directly without recording it in history and waits for
// the result. It is the default redo.
func (m *Manager) rerun(ctx context.Context, e Event) error {
	fut, err := m.processDirect(e, false, nil, nil)
	if err != nil {
		return err
	}
	if fut == nil {
		return nil
	}
	_, err = fut.Wait(ctx)
	return err
}
