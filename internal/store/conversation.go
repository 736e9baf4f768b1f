package store

import (
	"strconv"
	"strings"
	"time"

	"multichat/internal/model"
)

// DefaultTitle is the placeholder title of a conversation with no user message yet.
const DefaultTitle = "New Chat"

// ErrorReply is appended as the assistant turn when a send fails.
const ErrorReply = "Sorry, I encountered an error processing your request."

const titleLength = 30

// Message is one turn of a conversation.
type Message struct {
	ID        string
	Role      model.Role
	Content   string
	Timestamp time.Time
	Model     model.ModelID
	Citations []model.Citation
	// Failed marks the ErrorReply turn of a send the backend did not answer.
	Failed bool
}

// MessageInput is the caller-supplied part of a Message; the store assigns
// the id and timestamp.
type MessageInput struct {
	Role      model.Role
	Content   string
	Model     model.ModelID
	Citations []model.Citation
	Failed    bool
}

// Conversation is a titled, ordered sequence of messages bound to one model.
type Conversation struct {
	ID           string
	Title        string
	Model        model.ModelID
	Messages     []Message
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Draft marks a conversation the backend has not seen yet.
	Draft bool
}

// DeriveTitle truncates content to the title length, appending an ellipsis
// when anything was cut.
func DeriveTitle(content string) string {
	if strings.TrimSpace(content) == "" {
		return DefaultTitle
	}
	r := []rune(content)
	if len(r) <= titleLength {
		return content
	}
	return string(r[:titleLength]) + "..."
}

// DisplayMessages returns the messages a UI should render. System messages
// stay in storage but are never shown.
func DisplayMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (m Message) clone() Message {
	if m.Citations != nil {
		m.Citations = append([]model.Citation(nil), m.Citations...)
	}
	return m
}

func (c *Conversation) clone() Conversation {
	out := *c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m.clone()
		}
	}
	return out
}

// hasUserMessage reports whether any user turn has been recorded.
func (c *Conversation) hasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == model.RoleUser {
			return true
		}
	}
	return false
}

func (c *Conversation) chat() model.Chat {
	return model.Chat{
		ID:           c.ID,
		Title:        c.Title,
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func fromChat(ch model.Chat) *Conversation {
	title := ch.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	updated := ch.UpdatedAt
	if updated.IsZero() {
		updated = ch.CreatedAt
	}
	return &Conversation{
		ID:           ch.ID,
		Title:        title,
		Model:        ch.Model,
		SystemPrompt: ch.SystemPrompt,
		CreatedAt:    ch.CreatedAt,
		UpdatedAt:    updated,
	}
}

func fromStored(msgs []model.StoredMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Model:     m.Model,
			Citations: m.Citations,
		})
	}
	return out
}

func attachmentSuffix(n int) string {
	if n == 0 {
		return ""
	}
	return " [" + strconv.Itoa(n) + " file(s) attached]"
}
