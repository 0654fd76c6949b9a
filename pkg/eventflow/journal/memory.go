package journal

import "sync"

// MemoryStore keeps records in memory. Useful for tests and short-lived runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	nextSeq int64
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, ErrStoreClosed
	}
	s.nextSeq++
	r = stamp(r)
	r.Seq = s.nextSeq
	s.records = append(s.records, r)
	return r, nil
}

// List implements Store.
func (s *MemoryStore) List(runID string) ([]Record, error) {
	return s.filter(func(r Record) bool { return runID == "" || r.RunID == runID })
}

// ListByEvent implements Store.
func (s *MemoryStore) ListByEvent(eventID string) ([]Record, error) {
	return s.filter(func(r Record) bool { return r.EventID == eventID })
}

// Count implements Store.
func (s *MemoryStore) Count(runID string) (int, error) {
	out, err := s.List(runID)
	return len(out), err
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}

func (s *MemoryStore) filter(keep func(Record) bool) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := []Record{}
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
