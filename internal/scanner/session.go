// Package scanner drives one camera-based decode attempt as an explicit,
// cancellable event stream. A session owns its frame source exclusively:
// acquired on start, released on every exit path (match, error, cancel,
// explicit stop), never leaked.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// State is the session lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateMatched
	StateError
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateMatched:
		return "matched"
	case StateError:
		return "error"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Frame is one captured camera frame.
type Frame struct {
	Image image.Image
	At    time.Time
}

// Source provides camera frames. Open acquires the device and streams frames
// until the context is cancelled or Close is called; the channel closes when
// the stream ends. Close releases the device and must be safe to call more
// than once.
type Source interface {
	Open(ctx context.Context) (<-chan Frame, error)
	Close() error
}

// DecodeFunc extracts a token from a frame. A failed decode is the normal
// outcome for most frames and never terminates the session.
type DecodeFunc func(image.Image) (string, error)

// Event is delivered on the session stream: either a matched token or a
// session-level failure. Per-frame decode misses are not events.
type Event struct {
	Token string
	Err   error
}

// ErrSourceClosed signals the frame stream ended before any code was matched.
var ErrSourceClosed = errors.New("frame source closed")

// Session runs the scan state machine over a Source. At most one Matched
// event is delivered per session; the source is released before the match is
// handed to the consumer so a lingering stream cannot re-read the same
// physical code.
type Session struct {
	source Source
	decode DecodeFunc

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates an idle session.
func NewSession(source Source, decode DecodeFunc) *Session {
	return &Session{source: source, decode: decode, state: StateIdle}
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start acquires the source and begins scanning, returning the event stream.
// If a session is already active it is fully stopped first. An acquisition
// failure (permission denied, device busy) leaves the session in StateError;
// the caller retries explicitly.
func (s *Session) Start(ctx context.Context) (<-chan Event, error) {
	s.Stop()

	s.mu.Lock()
	s.state = StateStarting
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	frames, err := s.source.Open(runCtx)
	if err != nil {
		cancel()
		_ = s.source.Close()
		s.setState(StateError)
		return nil, fmt.Errorf("acquire frame source: %w", err)
	}

	events := make(chan Event, 1)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.state = StateScanning
	s.mu.Unlock()

	go s.run(runCtx, frames, events, done)
	return events, nil
}

func (s *Session) run(ctx context.Context, frames <-chan Frame, events chan<- Event, done chan struct{}) {
	matched := false
	defer func() {
		_ = s.source.Close()
		close(events)
		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.state = StateIdle
		s.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopping)
			return
		case frame, ok := <-frames:
			if !ok {
				s.setState(StateStopping)
				if ctx.Err() == nil && !matched {
					events <- Event{Err: ErrSourceClosed}
				}
				return
			}
			token, err := s.decode(frame.Image)
			if err != nil {
				decodeMisses.Inc()
				continue
			}
			matched = true
			s.setState(StateMatched)
			// Release the camera before the consumer sees the token.
			_ = s.source.Close()
			events <- Event{Token: token}
			s.setState(StateStopping)
			return
		}
	}
}

// Stop cancels the active session, blocking until the source is released and
// the event stream is closed. Safe to call any number of times, in any state.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
