package history

import (
	"time"

	"github.com/comigor/ragchat-go/internal/api"
)

// Message is one persisted turn of a conversation.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           api.Role     `json:"role"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"created_at"`
	Sources        []api.Source `json:"sources,omitempty"`
}
