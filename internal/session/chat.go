package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wirechat/wirechat/internal/conversation"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/transport"
)

// Dialer produces a fresh transport for each submitted prompt.
type Dialer func() transport.Transport

// Chat owns the conversation-level view of streaming: the store, the
// at-most-one-in-flight-session guard, and the derived status booleans the
// renderer consumes. The store outlives any individual session and
// accumulates messages across submissions.
type Chat struct {
	store    *conversation.Store
	endpoint string
	dial     Dialer
	logger   *slog.Logger

	mu      sync.Mutex
	current *Session
	subs    []func(State)
}

// NewChat creates a Chat that opens connections to endpoint through dial.
func NewChat(store *conversation.Store, endpoint string, dial Dialer, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		store:    store,
		endpoint: endpoint,
		dial:     dial,
		logger:   logger.With(slog.String("module", "session")),
	}
}

// Submit starts a streaming session for prompt. It creates the user message
// and the empty assistant placeholder, in that order, before the connection
// is opened, so the renderer has something to show immediately.
//
// While a previous session is still connecting or streaming, Submit is a
// no-op and reports false: no message is appended and no transport is opened.
func (c *Chat) Submit(prompt string) bool {
	c.mu.Lock()
	if c.current != nil && c.current.Active() {
		c.mu.Unlock()
		return false
	}

	now := time.Now()
	c.store.Append(models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   prompt,
		Timestamp: now,
	})
	target := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Timestamp: now,
	}
	c.store.Append(target)

	s := newSession(c.store, c.dial(), target.ID, c.logger, c.notify)
	s.markConnecting()
	c.current = s
	c.mu.Unlock()

	s.start(c.endpoint, prompt)
	return true
}

// AwaitingConnection reports whether a session is waiting for its transport
// to connect. Derived from session state, not separately maintained.
func (c *Chat) AwaitingConnection() bool {
	return c.state() == StateConnecting
}

// Streaming reports whether a session is actively receiving fragments.
func (c *Chat) Streaming() bool {
	return c.state() == StateStreaming
}

// Cancel force-closes the in-flight session, if any. Used on teardown.
func (c *Chat) Cancel() {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
}

// Subscribe registers fn to be called on every session state change.
func (c *Chat) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs = append(c.subs, fn)
}

func (c *Chat) state() State {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return StateIdle
	}
	return current.State()
}

func (c *Chat) notify(st State) {
	c.mu.Lock()
	subs := make([]func(State), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
