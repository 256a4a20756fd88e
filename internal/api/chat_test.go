package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_NewConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What is in the report?", body["message"])
		_, hasConv := body["conversation_id"]
		assert.False(t, hasConv, "conversation_id is omitted when absent")

		w.Write([]byte(`{"id":"m1","content":"...","timestamp":"2024-01-01T00:00:00Z","conversation_id":"c1"}`))
	})

	resp, err := c.SendMessage(context.Background(), "What is in the report?", "")
	require.NoError(t, err)
	require.Equal(t, "m1", resp.ID)
	require.Equal(t, "...", resp.Content)
	require.Equal(t, "c1", resp.ConversationID)
	require.True(t, resp.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Empty(t, resp.Sources)
}

func TestSendMessage_ExistingConversationWithSources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body.ConversationID)

		w.Write([]byte(`{
			"id":"m2","content":"answer","role":"assistant",
			"timestamp":"2024-01-01T10:00:00.123456",
			"conversation_id":"c1",
			"sources":[{"id":"demo_doc","filename":"sample_document.pdf","page":1,"relevance_score":0.85}]
		}`))
	})

	resp, err := c.SendMessage(context.Background(), "again", "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", resp.ConversationID)
	require.Equal(t, RoleAssistant, resp.Role)
	require.Equal(t, []Source{{ID: "demo_doc", Filename: "sample_document.pdf", Page: 1, RelevanceScore: 0.85}}, resp.Sources)
	require.True(t, resp.Timestamp.Equal(time.Date(2024, 1, 1, 10, 0, 0, 123456000, time.UTC)))
}

func TestSendMessage_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	})

	resp, err := c.SendMessage(context.Background(), "hi", "")
	require.Nil(t, resp)
	require.Equal(t, 500, StatusCode(err))
	require.Equal(t, "internal error", ErrorMessage(err))
}

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/chat/history/conv 1", r.URL.Path)
		assert.Equal(t, "/api/v1/chat/history/conv%201", r.URL.EscapedPath())
		w.Write([]byte(`{"conversation_id":"conv 1","messages":[
			{"id":"u1","content":"hi","role":"user","timestamp":"2024-01-01T00:00:00"},
			{"id":"a1","content":"hello","role":"assistant","timestamp":"2024-01-01T00:00:01"}
		]}`))
	})

	h, err := c.History(context.Background(), "conv 1")
	require.NoError(t, err)
	require.Equal(t, "conv 1", h.ConversationID)
	require.Len(t, h.Messages, 2)
	require.Equal(t, RoleUser, h.Messages[0].Role)
	require.Equal(t, "hello", h.Messages[1].Content)
}

func TestTimestamp_Unmarshal(t *testing.T) {
	cases := map[string]time.Time{
		`"2024-01-01T00:00:00Z"`:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2024-01-01T02:00:00+02:00"`: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2024-03-05T06:07:08"`:       time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC),
		`"2024-03-05 06:07:08.5"`:     time.Date(2024, 3, 5, 6, 7, 8, 500000000, time.UTC),
		`null`:                        {},
	}
	for in, want := range cases {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts), in)
		require.True(t, want.Equal(ts.Time), "%s: got %s", in, ts.Time)
	}

	var ts Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestClearHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/api/v1/chat/history/c1" {
			w.Write([]byte(`{"message":"Conversation cleared"}`))
			return
		}
		http.Error(w, `{"detail":"Conversation not found"}`, http.StatusNotFound)
	})

	require.NoError(t, c.ClearHistory(context.Background(), "c1"))
	err := c.ClearHistory(context.Background(), "c2")
	require.Equal(t, http.StatusNotFound, StatusCode(err))
}
