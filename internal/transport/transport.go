// Package transport abstracts the duplex connection a streaming session runs
// over, isolating connection details from the session state machine.
package transport

import "context"

// Kind identifies a transport event.
type Kind int

const (
	// KindConnected signals the connection is established and Send may be
	// used.
	KindConnected Kind = iota
	// KindFragment carries one inbound chunk of assistant text.
	KindFragment
	// KindClosed signals the peer closed the connection normally; the
	// response is complete.
	KindClosed
	// KindError signals the connection failed. No further fragments will
	// arrive.
	KindError
)

// Event is one occurrence on the connection. Text is set for KindFragment,
// Err for KindError.
type Event struct {
	Kind Kind
	Text string
	Err  error
}

// Transport is a duplex, ordered, reliable text-fragment channel. Events are
// delivered on the channel returned by Open in the order the connection
// raises them, and the channel is closed after a terminal (closed or error)
// event.
//
// Send is usable only after a KindConnected event was delivered, and exactly
// once per connection. Close is idempotent and safe to call from any state.
type Transport interface {
	Open(ctx context.Context, endpoint string) (<-chan Event, error)
	Send(prompt string) error
	Close() error
}

// PromptEnvelope is the single outbound payload of a session, sent
// immediately after connecting.
type PromptEnvelope struct {
	Prompt string `json:"prompt"`
}
