package eventflow

import (
	"errors"
	"sync"
)

// StreamItem is one element of an event stream: an event to submit or a
// stream-level error.
type StreamItem struct {
	Event Event
	Err   error
}

// StreamOptions configures AddEventStream. All callbacks are optional.
type StreamOptions struct {
	// OnDone is called when a submitted event completes.
	OnDone func(e Event, data any)
	// OnStreamError receives stream errors and submission errors.
	OnStreamError func(err error)
	// OnStreamDone is called once when ingestion ends for any reason.
	OnStreamDone func()
	// CancelOnError stops ingestion at the first stream error.
	// Events already submitted keep running.
	CancelOnError bool
}

// StreamSubscription is a handle on a running stream ingestion.
type StreamSubscription struct {
	once   sync.Once
	cancel chan struct{}
	done   chan struct{}
}

// Cancel stops ingestion. Submitted events are unaffected.
func (s *StreamSubscription) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// Done is closed when ingestion has ended.
func (s *StreamSubscription) Done() <-chan struct{} {
	return s.done
}

// AddEventStream submits every event received from src until src is
// closed, the subscription is cancelled, or the manager is disposed.
//
// Example:
//
//	src := make(chan eventflow.StreamItem)
//	sub := m.AddEventStream(src, eventflow.StreamOptions{CancelOnError: true})
//	defer sub.Cancel()
func (m *Manager) AddEventStream(src <-chan StreamItem, opts StreamOptions) *StreamSubscription {
	sub := &StreamSubscription{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.consume(src, opts, sub)
	return sub
}

func (m *Manager) consume(src <-chan StreamItem, opts StreamOptions, sub *StreamSubscription) {
	defer func() {
		if opts.OnStreamDone != nil {
			opts.OnStreamDone()
		}
		close(sub.done)
	}()

	for {
		select {
		case <-sub.cancel:
			return
		case <-m.stop:
			return
		case item, ok := <-src:
			if !ok {
				return
			}
			if item.Err != nil {
				if opts.OnStreamError != nil {
					opts.OnStreamError(item.Err)
				}
				if opts.CancelOnError {
					return
				}
				continue
			}
			if item.Event == nil {
				continue
			}
			if err := m.ingest(item.Event, opts); err != nil {
				if opts.OnStreamError != nil {
					opts.OnStreamError(err)
				}
				if errors.Is(err, ErrManagerDisposed) {
					return
				}
			}
		}
	}
}

// ingest submits e, attaching the OnDone callback first so inline
// completions are observed.
func (m *Manager) ingest(e Event, opts StreamOptions) error {
	var stop func()
	if opts.OnDone != nil {
		stop = e.Listen(Listener{OnDone: func(data any) { opts.OnDone(e, data) }})
	}
	fut, err := m.AddEventToQueue(e)
	if fut == nil && stop != nil {
		stop()
	}
	return err
}
