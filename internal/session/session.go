// Package session drives one prompt/response cycle over a transport. The
// Session state machine is the single authority over which transport events
// are legal in which state; events arriving after a terminal state are
// ignored, never processed.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/wirechat/wirechat/internal/conversation"
	"github.com/wirechat/wirechat/internal/transport"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle is the state before Submit.
	StateIdle State = iota
	// StateConnecting means the transport is being opened.
	StateConnecting
	// StateStreaming means the prompt was sent and fragments are arriving.
	StateStreaming
	// StateCompleted means the response finished normally.
	StateCompleted
	// StateErrored means the session ended on a failure or cancellation.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ErrorAdvisory is shown in place of the assistant's response when a session
// fails before producing any text.
const ErrorAdvisory = "Something went wrong while reaching the assistant. Please try again."

// Session covers exactly one submitted prompt and its one streamed response.
// It owns its transport handle exclusively and releases it exactly once, on
// every path out of the connecting and streaming states.
type Session struct {
	store    *conversation.Store
	tr       transport.Transport
	targetID string
	logger   *slog.Logger
	onState  func(State)

	// ctx covers the dial and the event loop; Cancel cancels it so a hung
	// handshake cannot outlive the session.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State

	done chan struct{}
}

func newSession(
	store *conversation.Store,
	tr transport.Transport,
	targetID string,
	logger *slog.Logger,
	onState func(State),
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:    store,
		tr:       tr,
		targetID: targetID,
		logger:   logger,
		onState:  onState,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// markConnecting is called under the Chat lock, before the session is
// published as current, so the submission guard observes it as active
// immediately.
func (s *Session) markConnecting() {
	s.mu.Lock()
	s.state = StateConnecting
	s.mu.Unlock()
}

// start begins the event loop.
func (s *Session) start(endpoint, prompt string) {
	if s.onState != nil {
		s.onState(StateConnecting)
	}

	go func() {
		defer close(s.done)
		defer s.cancel()

		events, err := s.tr.Open(s.ctx, endpoint)
		if err != nil {
			s.fail(err)
			return
		}
		s.run(events, prompt)
	}()
}

// run processes transport events strictly in arrival order. It is the only
// goroutine that mutates the target message, so all store writes for this
// session are sequential.
func (s *Session) run(events <-chan transport.Event, prompt string) {
	for ev := range events {
		if s.terminal() {
			// Cancelled or already failed; drain without side effects.
			continue
		}

		switch ev.Kind {
		case transport.KindConnected:
			if s.State() != StateConnecting {
				continue
			}
			if err := s.tr.Send(prompt); err != nil {
				s.fail(err)
				continue
			}
			// A Cancel landing while Send was in flight has already made the
			// session terminal; the swap refuses and the prompt dies quietly.
			s.transitionFrom(StateConnecting, StateStreaming)
		case transport.KindFragment:
			s.applyFragment(ev.Text)
		case transport.KindClosed:
			if s.State() == StateStreaming {
				s.complete()
			} else {
				s.fail(errors.New("connection closed before the prompt was answered"))
			}
		case transport.KindError:
			s.fail(ev.Err)
		}
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Active reports whether the session still holds transport resources.
func (s *Session) Active() bool {
	st := s.State()
	return st == StateConnecting || st == StateStreaming
}

// Done is closed once the event loop has drained all transport events.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel force-closes the transport and ends the session in errored without
// touching the store. Late events from the transport are drained and ignored,
// so a fragment racing the cancellation can never resurrect the session.
func (s *Session) Cancel() {
	if !s.finish(StateErrored) {
		return
	}
	s.cancel()
	_ = s.tr.Close()
}

func (s *Session) complete() {
	if !s.finish(StateCompleted) {
		return
	}
	s.cancel()
	_ = s.tr.Close()
}

// fail ends the session in errored. The advisory replaces the target content
// only when nothing was streamed yet; partial output is never discarded in
// favor of a generic error string.
func (s *Session) fail(err error) {
	if !s.finish(StateErrored) {
		return
	}
	s.cancel()
	_ = s.tr.Close()

	if content, ok := s.store.Content(s.targetID); ok && content == "" {
		s.store.ReplaceContent(s.targetID, ErrorAdvisory)
	}
	if err != nil {
		s.logger.Error("Streaming session failed", slog.String("err", err.Error()))
	}
}

// transitionFrom swaps the state only when it still equals from. A terminal
// state never equals from, so a session that has ended cannot be pulled back
// to life by an event that raced the ending.
func (s *Session) transitionFrom(from, next State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()

	if s.onState != nil {
		s.onState(next)
	}
	return true
}

// applyFragment appends to the target while holding the state lock, so a
// terminal transition cannot slip between the state check and the store
// write. Store observers must not call back into the session.
func (s *Session) applyFragment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return
	}
	s.store.AppendToContent(s.targetID, text)
}

// finish attempts the transition into a terminal state. It reports false if
// the session is already terminal, which guarantees the transport is released
// at most once and the target message is never mutated twice on shutdown.
func (s *Session) finish(next State) bool {
	s.mu.Lock()
	if s.state == StateCompleted || s.state == StateErrored {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()

	if s.onState != nil {
		s.onState(next)
	}
	return true
}

func (s *Session) terminal() bool {
	st := s.State()
	return st == StateCompleted || st == StateErrored
}
