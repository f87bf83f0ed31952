package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultType is the classification given to messages that do not set one.
const DefaultType = "info"

// Message is the JSON envelope exchanged with the broker.
type Message struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Type       string         `json:"type"`
	CreatedAt  time.Time      `json:"createdAt"`
	Source     string         `json:"source,omitempty"`
	Properties map[string]any `json:"properties"`
}

// NewMessage builds a message with a fresh id and the current UTC time.
func NewMessage(content, msgType string) *Message {
	m := &Message{
		Content:    content,
		Type:       msgType,
		Properties: map[string]any{},
	}
	m.EnsureDefaults()
	return m
}

// EnsureDefaults fills the id, type, timestamp and properties of a message
// that was built by hand or decoded from a request. Values already present are
// never replaced.
func (m *Message) EnsureDefaults() {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Type == "" {
		m.Type = DefaultType
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Properties == nil {
		m.Properties = map[string]any{}
	}
}

// Encode serializes the message as JSON.
func (m *Message) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}

// Decode parses a JSON envelope. A body without a UUID id or without content
// is not a message this system produced.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if m.ID == "" {
		return Message{}, fmt.Errorf("message has no id")
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		return Message{}, fmt.Errorf("message id %q is not a UUID: %w", m.ID, err)
	}
	if m.Content == "" {
		return Message{}, fmt.Errorf("message %s has no content", m.ID)
	}
	if m.Type == "" {
		m.Type = DefaultType
	}
	if m.Properties == nil {
		m.Properties = map[string]any{}
	}
	return m, nil
}
