// Package conversation holds the canonical, ordered log of messages in a
// chat. The store is the only mutable state shared between streaming sessions
// and the renderer; all mutation goes through identity-based operations so
// insertion order and message identity can never be disturbed.
package conversation

import (
	"sync"

	"github.com/wirechat/wirechat/internal/models"
)

// Store is an append-only, insertion-ordered message log. Messages are never
// removed or reordered; content is only ever changed through AppendToContent
// and ReplaceContent, both keyed by message ID.
type Store struct {
	mu       sync.Mutex
	messages []models.Message
	index    map[string]int

	subs []func(models.Message)
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// Append adds message to the end of the log and notifies observers.
func (s *Store) Append(message models.Message) {
	s.mu.Lock()
	s.index[message.ID] = len(s.messages)
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.notify(message)
}

// AppendToContent concatenates fragment to the content of the message with
// the given ID. A fragment for an unknown ID is silently dropped: a late
// fragment can race a session's own cleanup, and that race is expected to be
// harmless.
func (s *Store) AppendToContent(id, fragment string) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.messages[i].Content += fragment
	message := s.messages[i]
	s.mu.Unlock()

	s.notify(message)
}

// ReplaceContent overwrites the full content of the message with the given
// ID. Used to post an error advisory atomically instead of appending more
// text. Unknown IDs are ignored.
func (s *Store) ReplaceContent(id, content string) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.messages[i].Content = content
	message := s.messages[i]
	s.mu.Unlock()

	s.notify(message)
}

// Content returns the current content of the message with the given ID and
// whether the message exists.
func (s *Store) Content(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.messages[i].Content, true
}

// Messages returns a snapshot of the log in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

// Subscribe registers fn to be called with the affected message after every
// mutation. Callbacks run outside the store lock.
func (s *Store) Subscribe(fn func(models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = append(s.subs, fn)
}

func (s *Store) notify(message models.Message) {
	s.mu.Lock()
	subs := make([]func(models.Message), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(message)
	}
}
