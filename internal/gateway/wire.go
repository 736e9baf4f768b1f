package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"multichat/internal/model"
)

// chatWire accepts both "_id" and "id", and the loose timestamp formats
// some backends emit.
type chatWire struct {
	MongoID      string        `json:"_id"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Model        model.ModelID `json:"model"`
	SystemPrompt string        `json:"system_prompt"`
	CreatedAt    flexTime      `json:"created_at"`
	UpdatedAt    flexTime      `json:"updated_at"`
}

func (w chatWire) toChat() model.Chat {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	updated := w.UpdatedAt.Time()
	if updated.IsZero() {
		updated = w.CreatedAt.Time()
	}
	return model.Chat{
		ID:           id,
		Title:        w.Title,
		Model:        w.Model,
		SystemPrompt: w.SystemPrompt,
		CreatedAt:    w.CreatedAt.Time(),
		UpdatedAt:    updated,
	}
}

type messageWire struct {
	MongoID   string           `json:"_id"`
	ID        string           `json:"id"`
	Role      model.Role       `json:"role"`
	Content   string           `json:"content"`
	Model     model.ModelID    `json:"model"`
	Citations []model.Citation `json:"citations"`
	Timestamp flexTime         `json:"timestamp"`
}

func (w messageWire) toMessage(conversationID string) model.StoredMessage {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	return model.StoredMessage{
		ID:        id,
		ChatID:    conversationID,
		Role:      w.Role,
		Content:   w.Content,
		Model:     w.Model,
		Citations: w.Citations,
		Timestamp: w.Timestamp.Time(),
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// epoch milliseconds
		var ms int64
		if err2 := json.Unmarshal(b, &ms); err2 != nil {
			return err
		}
		*t = flexTime(time.UnixMilli(ms).UTC())
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = flexTime(time.Time{})
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			*t = flexTime(parsed)
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t flexTime) Time() time.Time {
	return time.Time(t)
}
