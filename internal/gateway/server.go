// Package gateway implements the server side of the streaming protocol: one
// WebSocket connection carries exactly one prompt and one streamed response.
// The client core treats this peer as an external collaborator; it lives here
// so the repo ships something real to connect to.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wirechat/wirechat/internal/services"
	"github.com/wirechat/wirechat/internal/transport"
)

const closeWriteTimeout = time.Second

// Server upgrades HTTP requests to WebSocket connections and streams provider
// fragments over them. After the stream ends the connection is closed; there
// is no second prompt on the same connection.
type Server struct {
	provider services.Provider
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server streaming from the given provider.
func New(provider services.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With(slog.String("module", "gateway")),
	}
}

// HandleStream serves one prompt/response cycle. It reads the prompt
// envelope, writes each provider fragment as its own text frame, and closes
// the connection normally when the stream is done. Provider failures close
// the connection with an internal-error status instead.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", slog.String("err", err.Error()))
		return
	}
	defer conn.Close()

	var env transport.PromptEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		s.logger.Error("Failed to read prompt", slog.String("err", err.Error()))
		return
	}
	if env.Prompt == "" {
		s.closeWith(conn, websocket.ClosePolicyViolation, "prompt is required")
		return
	}

	s.logger.Debug("Streaming response", slog.Int("promptLen", len(env.Prompt)))

	for fragment, err := range s.provider.Stream(r.Context(), env.Prompt) {
		if err != nil {
			s.logger.Error("Provider stream failed", slog.String("err", err.Error()))
			s.closeWith(conn, websocket.CloseInternalServerErr, "stream failed")
			return
		}
		if fragment == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(fragment)); err != nil {
			s.logger.Error("Failed to write fragment", slog.String("err", err.Error()))
			return
		}
	}

	s.closeWith(conn, websocket.CloseNormalClosure, "")
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(closeWriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return
	}
	// Give the peer a moment to read the close frame before tearing down.
	_ = conn.SetReadDeadline(time.Now().Add(closeWriteTimeout))
	_, _, _ = conn.ReadMessage()
}
