// Package responder produces the assistant side of a chat turn for the
// reference backend.
package responder

import (
	"context"

	"github.com/comigor/ragchat-go/internal/history"
	"github.com/comigor/ragchat-go/internal/library"
)

// Turn is everything known when a user message arrives.
type Turn struct {
	Message  string
	History  []history.Message
	Passages []library.Passage
}

// Responder answers a chat turn.
type Responder interface {
	Reply(ctx context.Context, turn Turn) (string, error)
}
