package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wirechat/wirechat/internal/transport"
)

func collect(t *testing.T, events <-chan transport.Event) []transport.Event {
	t.Helper()

	var out []transport.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out collecting events, got %v", out)
		}
	}
}

func TestWSStreamLifecycle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var env transport.PromptEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("read prompt failed: %v", err)
			return
		}
		if env.Prompt != "Hello" {
			t.Errorf("prompt = %q, want %q", env.Prompt, "Hello")
		}

		for _, fragment := range []string{"Hi", " there", "!"} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fragment)); err != nil {
				t.Errorf("write fragment failed: %v", err)
				return
			}
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ws := transport.NewWS()
	// The http:// test URL exercises the ws:// scheme normalization.
	events, err := ws.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	first := <-events
	if first.Kind != transport.KindConnected {
		t.Fatalf("first event kind = %v, want KindConnected", first.Kind)
	}

	if err := ws.Send("Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	rest := collect(t, events)
	var got string
	for i, ev := range rest {
		switch ev.Kind {
		case transport.KindFragment:
			got += ev.Text
		case transport.KindClosed:
			if i != len(rest)-1 {
				t.Errorf("KindClosed arrived before the last event")
			}
		default:
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if got != "Hi there!" {
		t.Errorf("concatenated fragments = %q, want %q", got, "Hi there!")
	}
	if last := rest[len(rest)-1]; last.Kind != transport.KindClosed {
		t.Errorf("last event kind = %v, want KindClosed", last.Kind)
	}

	if err := ws.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWSDialFailure(t *testing.T) {
	// A plain HTTP handler rejects the websocket handshake.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	ws := transport.NewWS()
	events, err := ws.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got := collect(t, events)
	if len(got) != 1 {
		t.Fatalf("events = %+v, want exactly one", got)
	}
	if got[0].Kind != transport.KindError {
		t.Errorf("event kind = %v, want KindError", got[0].Kind)
	}
	if got[0].Err == nil {
		t.Error("error event carries no error")
	}
}

func TestWSSendBeforeConnect(t *testing.T) {
	ws := transport.NewWS()
	if err := ws.Send("too early"); err == nil {
		t.Error("Send() before connect = nil error, want error")
	}
}

func TestWSCloseIsIdempotent(t *testing.T) {
	ws := transport.NewWS()
	if err := ws.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWSOpenRejectsBadEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"empty", ""},
		{"unsupported scheme", "ftp://example.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := transport.NewWS()
			if _, err := ws.Open(context.Background(), tt.endpoint); err == nil {
				t.Errorf("Open(%q) error = nil, want error", tt.endpoint)
			}
		})
	}
}
