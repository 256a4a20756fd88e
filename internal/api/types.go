package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Timestamp decodes both RFC 3339 and the zone-less ISO 8601 form emitted by
// Python backends. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Source is a document passage the backend cited for an answer.
type Source struct {
	ID             string  `json:"id,omitempty"`
	Filename       string  `json:"filename"`
	Page           int     `json:"page,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the assistant turn returned for a chat request.
type ChatResponse struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Role           Role      `json:"role,omitempty"`
	Timestamp      Timestamp `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	Sources        []Source  `json:"sources,omitempty"`
}

// HistoryMessage is one stored turn of a conversation.
type HistoryMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp Timestamp `json:"timestamp"`
	Sources   []Source  `json:"sources,omitempty"`
}

// History is the server-side transcript of a conversation.
type History struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
}

// Document is the metadata of an uploaded document.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadTime Timestamp `json:"upload_time"`
	Status     string    `json:"status"`
	Type       string    `json:"type"`
}

// UploadResult acknowledges a document upload.
type UploadResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
}

// HealthStatus is returned by GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
	Version   string    `json:"version"`
}
