package models

import "time"

// Message represents an individual communication entry within a conversation.
// The ID is assigned at creation and never changes; the content of an
// assistant message starts empty and grows while its response is streamed.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the user. Its content is fixed
	// at creation.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the assistant.
	RoleAssistant Role = "assistant"
)
