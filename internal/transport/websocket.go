package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteTimeout = time.Second

// WS implements Transport over a WebSocket connection. Each inbound text
// frame is delivered as one fragment; a normal close from the peer marks the
// end of the response.
type WS struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWS creates an unconnected WebSocket transport.
func NewWS() *WS {
	return &WS{}
}

// Open dials endpoint and starts delivering events. Dial failures surface as
// a KindError event rather than an Open error, so the caller observes the
// same event sequence for every connection outcome.
func (w *WS) Open(ctx context.Context, endpoint string) (<-chan Event, error) {
	wsURL, err := normalizeWSURL(endpoint)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close()
		}
		if err != nil {
			events <- Event{Kind: KindError, Err: err}
			return
		}

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			_ = conn.Close()
			events <- Event{Kind: KindClosed}
			return
		}
		w.conn = conn
		w.mu.Unlock()

		events <- Event{Kind: KindConnected}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					events <- Event{Kind: KindClosed}
				} else {
					events <- Event{Kind: KindError, Err: err}
				}
				return
			}
			events <- Event{Kind: KindFragment, Text: string(data)}
		}
	}()

	return events, nil
}

// Send writes the prompt envelope. It must only be called after the
// KindConnected event.
func (w *WS) Send(prompt string) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return errors.New("transport is not connected")
	}
	return conn.WriteJSON(PromptEnvelope{Prompt: prompt})
}

// Close releases the connection. Safe to call more than once and before the
// dial has finished; a connection established after Close is torn down
// immediately.
func (w *WS) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	return conn.Close()
}

func normalizeWSURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errors.New("endpoint is required")
	}
	if !strings.Contains(value, "://") {
		value = "ws://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported endpoint scheme: " + parsed.Scheme)
	}
	return parsed.String(), nil
}
