package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/wirechat/wirechat/internal/models"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

type homePageData struct {
	Messages []message

	AwaitingConnection bool
	Streaming          bool
}

// HandleHome renders the conversation view: the ordered message log plus the
// two transient status booleans the input affordances depend on.
func (m Main) HandleHome(w http.ResponseWriter, _ *http.Request) {
	msgs, err := m.messageViews()
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Messages:           msgs,
		AwaitingConnection: m.chat.AwaitingConnection(),
		Streaming:          m.chat.Streaming(),
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleChats accepts a prompt through form data and submits it as a new
// streaming session. While a previous response is still connecting or
// streaming the submission is rejected, mirroring the at-most-one-in-flight
// guard of the session layer.
//
// On success it renders the user message and the assistant placeholder so the
// renderer can show the pending response immediately; the placeholder's
// content then arrives through the SSE stream.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prompt := r.FormValue("message")
	if prompt == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if !m.chat.Submit(prompt) {
		m.logger.Warn("Submission rejected, a session is in flight")
		http.Error(w, "A response is still streaming", http.StatusConflict)
		return
	}

	messages := m.store.Messages()
	if len(messages) < 2 {
		http.Error(w, "conversation is in an unexpected state", http.StatusInternalServerError)
		return
	}
	userMsg := messages[len(messages)-2]
	aiMsg := messages[len(messages)-1]

	um, err := m.messageView(userMsg, "ended")
	if err != nil {
		m.logger.Error("Failed to render user message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", um); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	am, err := m.messageView(aiMsg, "loading")
	if err != nil {
		m.logger.Error("Failed to render assistant message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", am); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) messageView(msg models.Message, streamingState string) (message, error) {
	content, err := models.RenderMarkdown(msg.Content)
	if err != nil {
		return message{}, err
	}
	return message{
		ID:             msg.ID,
		Role:           string(msg.Role),
		Content:        content,
		Timestamp:      msg.Timestamp,
		StreamingState: streamingState,
	}, nil
}

func (m Main) messageViews() ([]message, error) {
	messages := m.store.Messages()
	active := m.chat.AwaitingConnection() || m.chat.Streaming()

	views := make([]message, len(messages))
	for i, msg := range messages {
		// Only the tail assistant message of an active session is still
		// receiving content.
		streamingState := "ended"
		if active && i == len(messages)-1 && msg.Role == models.RoleAssistant {
			streamingState = "loading"
		}
		view, err := m.messageView(msg, streamingState)
		if err != nil {
			return nil, err
		}
		views[i] = view
	}
	return views, nil
}
