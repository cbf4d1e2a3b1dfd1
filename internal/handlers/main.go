package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"
	wirechat "github.com/wirechat/wirechat"
	"github.com/wirechat/wirechat/internal/conversation"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/session"
)

const errLoggerKey = "err"

const statusSSETopic = "status"

// SSE event types for real-time updates.
var (
	messagesSSEType = sse.Type("messages")
	statusSSEType   = sse.Type("status")
)

// Main handles the web-facing surface of the chat client: the home page, the
// prompt submission endpoint, and the SSE stream that pushes message and
// status updates while a response is being streamed.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	chat  *session.Chat
	store *conversation.Store

	logger *slog.Logger
}

// NewMain creates a new Main instance wired to the given chat and store. It
// parses the embedded HTML templates and subscribes to store mutations and
// session state changes so every change reaches connected renderers through
// SSE.
func NewMain(chat *session.Chat, store *conversation.Store, logger *slog.Logger) (Main, error) {
	tmpl, err := template.ParseFS(
		wirechat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic, statusSSETopic}

				// Clients watching one streaming response subscribe to its
				// message-specific topic.
				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		chat:      chat,
		store:     store,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	store.Subscribe(m.publishMessage)
	chat.Subscribe(m.publishStatus)

	return m, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// HandleSSE serves the event stream consumed by the renderer.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server, cancelling any in-flight
// streaming session first. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	m.chat.Cancel()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// The close event complies with the SSE spec requiring data.
	e.AppendData("bye")
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// publishMessage pushes the rendered content of a mutated message to its
// message-specific SSE topic.
func (m Main) publishMessage(message models.Message) {
	content, err := models.RenderMarkdown(message.Content)
	if err != nil {
		m.logger.Error("Failed to render message content",
			slog.String("messageID", message.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: messagesSSEType}
	msg.AppendData(string(content))
	if err := m.sseSrv.Publish(&msg, messageIDTopic(message.ID)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", message.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// publishStatus pushes the two renderer booleans derived from session state.
// A terminal state tells the renderer to re-enable its input affordances.
func (m Main) publishStatus(st session.State) {
	payload, err := json.Marshal(struct {
		AwaitingConnection bool `json:"awaitingConnection"`
		Streaming          bool `json:"streaming"`
	}{
		AwaitingConnection: st == session.StateConnecting,
		Streaming:          st == session.StateStreaming,
	})
	if err != nil {
		m.logger.Error("Failed to marshal status", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: statusSSEType}
	msg.AppendData(string(payload))
	if err := m.sseSrv.Publish(&msg, statusSSETopic); err != nil {
		m.logger.Error("Failed to publish status", slog.String(errLoggerKey, err.Error()))
	}
}
