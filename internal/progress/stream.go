package progress

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Stream buffers the events of one run for a single listener. Emit never blocks the
// producer; once the listener detaches, later events are dropped for this listener only.
type Stream struct {
	mu       sync.Mutex
	pending  []Event
	closed   bool
	detached bool
	wake     chan struct{}
}

func NewStream() *Stream {
	return &Stream{wake: make(chan struct{})}
}

func (s *Stream) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached || s.closed {
		return
	}
	s.pending = append(s.pending, ev)
	s.signalLocked()
}

// Close marks the end of the run; Next drains what is buffered and then returns io.EOF.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.signalLocked()
}

// Detach drops the buffer and ignores further events. The run is unaffected.
func (s *Stream) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	s.pending = nil
	s.signalLocked()
}

func (s *Stream) signalLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// Next blocks until an event is available, the stream ends (io.EOF) or ctx is done.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending[0] = Event{}
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return ev, nil
		}
		if s.closed || s.detached {
			s.mu.Unlock()
			return Event{}, io.EOF
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-wake:
		}
	}
}

// WriteNDJSON writes one JSON object per line until the stream ends. flush, when non-nil,
// runs after every line. Write errors detach the stream.
func (s *Stream) WriteNDJSON(ctx context.Context, w io.Writer, flush func()) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for {
		ev, err := s.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			s.Detach()
			return err
		}
		if err := enc.Encode(ev); err != nil {
			s.Detach()
			return err
		}
		if flush != nil {
			flush()
		}
	}
}
