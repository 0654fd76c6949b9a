package eventflow

import "sync"

// CancelData describes why a token was cancelled.
type CancelData struct {
	Reason    string
	Retriable bool
}

// Token is a cancellation and pause handle shared by any number of events,
// possibly across managers. Events read it lazily; managers subscribe with
// AddListener and detach on Dispose.
type Token struct {
	mu         sync.Mutex
	cancelData *CancelData
	paused     bool
	listeners  map[int]func()
	nextID     int
}

// NewToken creates an active, unpaused token.
func NewToken() *Token {
	return &Token{}
}

// Cancel marks the token cancelled. The first cancellation wins.
func (t *Token) Cancel(reason string, retriable bool) {
	t.mu.Lock()
	if t.cancelData != nil {
		t.mu.Unlock()
		return
	}
	t.cancelData = &CancelData{Reason: reason, Retriable: retriable}
	fns := t.snapshotLocked()
	t.mu.Unlock()
	notify(fns)
}

// Pause pauses every event gated by the token.
func (t *Token) Pause() {
	t.setPaused(true)
}

// Resume lifts a Pause.
func (t *Token) Resume() {
	t.setPaused(false)
}

// Reset clears cancellation and pause so the token can gate new work.
func (t *Token) Reset() {
	t.mu.Lock()
	changed := t.cancelData != nil || t.paused
	t.cancelData = nil
	t.paused = false
	fns := t.snapshotLocked()
	t.mu.Unlock()
	if changed {
		notify(fns)
	}
}

func (t *Token) setPaused(paused bool) {
	t.mu.Lock()
	if t.paused == paused {
		t.mu.Unlock()
		return
	}
	t.paused = paused
	fns := t.snapshotLocked()
	t.mu.Unlock()
	notify(fns)
}

// IsCancelled reports whether Cancel was called.
func (t *Token) IsCancelled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelData != nil
}

// IsPaused reports whether the token is paused.
func (t *Token) IsPaused() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// CancelData returns a copy of the cancellation data, or nil.
func (t *Token) CancelData() *CancelData {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelData == nil {
		return nil
	}
	cd := *t.cancelData
	return &cd
}

// AddListener registers fn to be called after every state change.
// The returned function removes the listener.
func (t *Token) AddListener(fn func()) (remove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listeners == nil {
		t.listeners = make(map[int]func())
	}
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Token) snapshotLocked() []func() {
	fns := make([]func(), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
