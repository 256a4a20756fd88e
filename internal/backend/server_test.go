package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/history"
	"github.com/comigor/ragchat-go/internal/library"
	"github.com/comigor/ragchat-go/internal/responder"
	"github.com/comigor/ragchat-go/internal/storage"
)

var fixedNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type replyFunc func(ctx context.Context, turn responder.Turn) (string, error)

func (f replyFunc) Reply(ctx context.Context, turn responder.Turn) (string, error) { return f(ctx, turn) }

type fixture struct {
	client  *api.Client
	server  *Server
	library *library.Library
	url     string
}

func newFixture(t *testing.T, r responder.Responder, storageCfg config.StorageConfig) *fixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "ragchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storageCfg.UploadDir = filepath.Join(dir, "uploads")
	lib, err := library.Open(ctx, db, storageCfg)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	if r == nil {
		r = responder.Rules{}
	}
	s := New(lib, history.New(ctx, db), r, WithClock(func() time.Time { return fixedNow }))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{
		client:  api.NewClient(config.APIConfig{BaseURL: srv.URL}),
		server:  s,
		library: lib,
		url:     srv.URL,
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	h, err := f.client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", h.Status)
	require.Equal(t, Version, h.Version)
	require.True(t, h.Timestamp.Equal(fixedNow))
}

func TestRoot(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	var out map[string]any
	require.NoError(t, f.client.Request(context.Background(), "/", nil, &out))
	require.Equal(t, "healthy", out["status"])
	require.Equal(t, Version, out["version"])
}

func TestChat_NewConversationAndHistory(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	ctx := context.Background()

	first, err := f.client.SendMessage(ctx, "hello", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.ConversationID)
	require.Equal(t, api.RoleAssistant, first.Role)
	require.True(t, strings.HasPrefix(first.Content, "Hello!"))
	require.True(t, first.Timestamp.Equal(fixedNow))

	second, err := f.client.SendMessage(ctx, "ok", first.ConversationID)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)

	hist, err := f.client.History(ctx, first.ConversationID)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, hist.ConversationID)
	require.Len(t, hist.Messages, 4)
	roles := []api.Role{}
	for _, m := range hist.Messages {
		roles = append(roles, m.Role)
	}
	require.Equal(t, []api.Role{api.RoleUser, api.RoleAssistant, api.RoleUser, api.RoleAssistant}, roles)
	require.Equal(t, "hello", hist.Messages[0].Content)
	require.Equal(t, second.ID, hist.Messages[3].ID)
}

func TestChat_PassesHistoryToResponder(t *testing.T) {
	var turns []responder.Turn
	r := replyFunc(func(_ context.Context, turn responder.Turn) (string, error) {
		turns = append(turns, turn)
		return "reply " + turn.Message, nil
	})
	f := newFixture(t, r, config.StorageConfig{})
	ctx := context.Background()

	first, err := f.client.SendMessage(ctx, "one", "")
	require.NoError(t, err)
	_, err = f.client.SendMessage(ctx, "two", first.ConversationID)
	require.NoError(t, err)

	require.Len(t, turns, 2)
	require.Empty(t, turns[0].History)
	require.Len(t, turns[1].History, 2)
	require.Equal(t, "reply one", turns[1].History[1].Content)
}

func TestChat_SourcesFromDocuments(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	ctx := context.Background()

	up, err := f.client.UploadDocument(ctx, "zebra.md", strings.NewReader("zebras are striped horses"))
	require.NoError(t, err)

	resp, err := f.client.SendMessage(ctx, "tell me about zebras", "")
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	require.Equal(t, up.ID, resp.Sources[0].ID)
	require.Equal(t, "zebra.md", resp.Sources[0].Filename)
	require.Greater(t, resp.Sources[0].RelevanceScore, 0.0)
	require.Contains(t, resp.Content, "zebras are striped horses")

	hist, err := f.client.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Equal(t, resp.Sources, hist.Messages[1].Sources)
}

func TestChat_Errors(t *testing.T) {
	r := replyFunc(func(context.Context, responder.Turn) (string, error) {
		return "", errors.New("model unavailable")
	})
	f := newFixture(t, r, config.StorageConfig{})
	ctx := context.Background()

	_, err := f.client.SendMessage(ctx, "hi", "")
	require.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"model unavailable"}`, api.ErrorMessage(err))

	_, err = f.client.SendMessage(ctx, "   ", "")
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))

	err = f.client.Request(ctx, "/api/v1/chat", &api.RequestOptions{Method: http.MethodPost, Body: "not an object"}, nil)
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))
}

func TestHistory_UnknownConversationIsEmpty(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	hist, err := f.client.History(context.Background(), "nope")
	require.NoError(t, err)
	require.Equal(t, "nope", hist.ConversationID)
	require.NotNil(t, hist.Messages)
	require.Empty(t, hist.Messages)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	ctx := context.Background()

	resp, err := f.client.SendMessage(ctx, "hi", "")
	require.NoError(t, err)
	require.NoError(t, f.client.ClearHistory(ctx, resp.ConversationID))

	hist, err := f.client.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Empty(t, hist.Messages)

	err = f.client.ClearHistory(ctx, resp.ConversationID)
	require.Equal(t, http.StatusNotFound, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"Conversation not found"}`, api.ErrorMessage(err))
}

func TestDocuments_RoundTrip(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	ctx := context.Background()

	docs, err := f.client.ListDocuments(ctx)
	require.NoError(t, err)
	require.Empty(t, docs)

	up, err := f.client.UploadDocument(ctx, "report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "report.pdf", up.Filename)
	require.Equal(t, "success", up.Status)
	require.Equal(t, "Document 'report.pdf' uploaded successfully!", up.Message)

	docs, err = f.client.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, up.ID, docs[0].ID)
	assert.Equal(t, int64(8), docs[0].Size)
	assert.Equal(t, "pdf", docs[0].Type)
	assert.Equal(t, library.StatusProcessed, docs[0].Status)

	got, err := f.client.GetDocument(ctx, up.ID)
	require.NoError(t, err)
	require.Equal(t, "report.pdf", got.Filename)

	require.NoError(t, f.client.DeleteDocument(ctx, up.ID))
	docs, err = f.client.ListDocuments(ctx)
	require.NoError(t, err)
	require.Empty(t, docs)

	err = f.client.DeleteDocument(ctx, up.ID)
	require.Equal(t, http.StatusNotFound, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"Document not found"}`, api.ErrorMessage(err))

	_, err = f.client.GetDocument(ctx, up.ID)
	require.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{
		MaxFileSize:       4,
		AllowedExtensions: []string{".txt", ".md"},
	})
	ctx := context.Background()

	_, err := f.client.UploadDocument(ctx, "virus.exe", strings.NewReader("MZ"))
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"File type .exe not allowed. Allowed: [.txt, .md]"}`, api.ErrorMessage(err))

	_, err = f.client.UploadDocument(ctx, "big.txt", strings.NewReader("12345"))
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"File too large. Max size: 4 bytes"}`, api.ErrorMessage(err))

	form := api.NewForm()
	require.NoError(t, form.AddField("other", "x"))
	err = f.client.Request(ctx, "/api/v1/documents/upload", &api.RequestOptions{Method: http.MethodPost, Body: form}, nil)
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))

	docs, err := f.client.ListDocuments(ctx)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	err := f.client.Request(context.Background(), "/api/v1/nothing", nil, nil)
	require.Equal(t, http.StatusNotFound, api.StatusCode(err))
	require.Contains(t, api.ErrorMessage(err), `"detail"`)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	ctx := context.Background()
	_, err := f.client.SendMessage(ctx, "hello", "")
	require.NoError(t, err)
	_ = f.client.DeleteDocument(ctx, "missing")

	resp, err := http.Get(f.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, "ragchat_chat_messages_total 1")
	require.Contains(t, text, `ragchat_http_requests_total{method="POST",route="/api/v1/chat",status="200"} 1`)
	require.Contains(t, text, `ragchat_http_requests_total{method="DELETE",route="/api/v1/documents/:id",status="404"} 1`)
}

func TestErrorHandler_UnknownErrorIsInternal(t *testing.T) {
	f := newFixture(t, nil, config.StorageConfig{})
	f.server.echo.GET("/boom", func(c echo.Context) error { return errors.New("secret") })

	err := f.client.Request(context.Background(), "/boom", nil, nil)
	require.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
	require.JSONEq(t, `{"detail":"Internal server error"}`, api.ErrorMessage(err))
}
