package eventflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxHistorySize is the history capacity used when none is given.
const DefaultMaxHistorySize = 100

// HistoryEntry is one recorded undoable event.
type HistoryEntry struct {
	Event     Undoable
	Timestamp time.Time
}

// UndoRedoManager is a bounded two-stack history of undoable events.
//
// Recording a new entry clears the redo stack unless it merges into the
// most recent entry. When full, the oldest entry is evicted.
type UndoRedoManager struct {
	mu        sync.Mutex
	maxSize   int
	undo      []HistoryEntry
	redo      []HistoryEntry
	listeners map[int]func()
	nextID    int
}

// NewUndoRedoManager creates a history holding at most maxHistorySize
// entries per stack. Non-positive sizes use DefaultMaxHistorySize.
func NewUndoRedoManager(maxHistorySize int) *UndoRedoManager {
	if maxHistorySize <= 0 {
		maxHistorySize = DefaultMaxHistorySize
	}
	return &UndoRedoManager{
		maxSize:   maxHistorySize,
		listeners: make(map[int]func()),
	}
}

// MaxSize returns the per-stack capacity.
func (h *UndoRedoManager) MaxSize() int {
	return h.maxSize
}

// Record pushes e onto the undo stack, or merges it into the top entry
// when the top entry implements Merger and accepts it.
func (h *UndoRedoManager) Record(e Undoable) {
	h.mu.Lock()
	var top Undoable
	if n := len(h.undo); n > 0 {
		top = h.undo[n-1].Event
	}
	h.mu.Unlock()

	if merger, ok := top.(Merger); ok && merger.CanMergeWith(e) {
		merged := merger.MergeWith(e)
		h.mu.Lock()
		if n := len(h.undo); n > 0 && h.undo[n-1].Event == top {
			h.undo[n-1] = HistoryEntry{Event: merged, Timestamp: time.Now()}
			h.mu.Unlock()
			h.notify()
			return
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	h.undo = h.pushLocked(h.undo, HistoryEntry{Event: e, Timestamp: time.Now()})
	h.redo = nil
	h.mu.Unlock()
	h.notify()
}

// pushLocked appends entry, evicting from the bottom when over capacity.
func (h *UndoRedoManager) pushLocked(stack []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	stack = append(stack, entry)
	if over := len(stack) - h.maxSize; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

// Undo reverses up to count entries, most recent first, moving each to the
// redo stack. It returns how many were undone. A failing Undo stops the
// walk and leaves that entry on the undo stack.
func (h *UndoRedoManager) Undo(m *Manager, count int) (int, error) {
	if count <= 0 {
		count = 1
	}
	done := 0
	defer func() {
		if done > 0 {
			h.notify()
		}
	}()

	for done < count {
		entry, ok := h.pop(&h.undo)
		if !ok {
			break
		}
		if err := entry.Event.Undo(m); err != nil {
			h.push(&h.undo, entry)
			return done, fmt.Errorf("undo %s: %w", describe(entry.Event), err)
		}
		h.push(&h.redo, entry)
		done++
	}
	return done, nil
}

// Redo re-applies up to count undone entries, moving each back to the undo
// stack. Events implementing Redoer use their own Redo; others re-run
// their work through m without being recorded again.
func (h *UndoRedoManager) Redo(m *Manager, count int) (int, error) {
	if count <= 0 {
		count = 1
	}
	done := 0
	defer func() {
		if done > 0 {
			h.notify()
		}
	}()

	for done < count {
		entry, ok := h.pop(&h.redo)
		if !ok {
			break
		}
		if err := redo(m, entry.Event); err != nil {
			h.push(&h.redo, entry)
			return done, fmt.Errorf("redo %s: %w", describe(entry.Event), err)
		}
		h.push(&h.undo, entry)
		done++
	}
	return done, nil
}

func redo(m *Manager, e Undoable) error {
	if r, ok := e.(Redoer); ok {
		return r.Redo(m)
	}
	if m == nil {
		return ErrNoManager
	}
	return m.rerun(context.Background(), e)
}

func (h *UndoRedoManager) pop(stack *[]HistoryEntry) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(*stack)
	if n == 0 {
		return HistoryEntry{}, false
	}
	entry := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	return entry, true
}

func (h *UndoRedoManager) push(stack *[]HistoryEntry, entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*stack = h.pushLocked(*stack, entry)
}

// CanUndo reports whether the undo stack is non-empty.
func (h *UndoRedoManager) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (h *UndoRedoManager) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// UndoEntries returns the undo stack, oldest first.
func (h *UndoRedoManager) UndoEntries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.undo...)
}

// RedoEntries returns the redo stack, oldest first.
func (h *UndoRedoManager) RedoEntries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.redo...)
}

// Clear empties both stacks. Listeners are notified only if anything was removed.
func (h *UndoRedoManager) Clear() {
	h.mu.Lock()
	changed := len(h.undo) > 0 || len(h.redo) > 0
	h.undo = nil
	h.redo = nil
	h.mu.Unlock()
	if changed {
		h.notify()
	}
}

// ClearRedo empties the redo stack. Listeners are notified only if it was non-empty.
func (h *UndoRedoManager) ClearRedo() {
	h.mu.Lock()
	changed := len(h.redo) > 0
	h.redo = nil
	h.mu.Unlock()
	if changed {
		h.notify()
	}
}

// AddListener registers fn to be called after every history change.
func (h *UndoRedoManager) AddListener(fn func()) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *UndoRedoManager) notify() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	notify(fns)
}

func describe(e Event) string {
	if key := e.DebugKey(); key != "" {
		return key
	}
	return e.ID()
}
