package backend

import (
	"context"
	"io"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/history"
	"github.com/comigor/ragchat-go/internal/library"
)

// Documents is satisfied by *library.Library.
type Documents interface {
	Add(ctx context.Context, filename string, r io.Reader) (api.Document, error)
	List(ctx context.Context) ([]api.Document, error)
	Get(ctx context.Context, id string) (api.Document, error)
	Delete(ctx context.Context, id string) (api.Document, error)
	Search(q string, k int) ([]library.Passage, error)
}

// Conversations is satisfied by *history.Store.
type Conversations interface {
	Save(ctx context.Context, msg history.Message)
	List(ctx context.Context, conversationID string) []history.Message
	Clear(ctx context.Context, conversationID string) bool
}
