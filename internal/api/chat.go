package api

import (
	"context"
	"net/http"
	"net/url"
)

// SendMessage posts text to the chat endpoint. An empty conversationID starts
// a new conversation; the backend assigns one and returns it.
func (c *Client) SendMessage(ctx context.Context, text, conversationID string) (*ChatResponse, error) {
	var resp ChatResponse
	err := c.Request(ctx, "/api/v1/chat", &RequestOptions{
		Method: http.MethodPost,
		Body:   ChatRequest{Message: text, ConversationID: conversationID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches the stored transcript of a conversation.
func (c *Client) History(ctx context.Context, conversationID string) (*History, error) {
	var h History
	if err := c.Request(ctx, "/api/v1/chat/history/"+url.PathEscape(conversationID), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ClearHistory deletes the stored transcript of a conversation.
func (c *Client) ClearHistory(ctx context.Context, conversationID string) error {
	return c.Request(ctx, "/api/v1/chat/history/"+url.PathEscape(conversationID), &RequestOptions{
		Method: http.MethodDelete,
	}, nil)
}
