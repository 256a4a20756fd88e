package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLibrary is a tiny in-memory backend for the document endpoints.
type fakeLibrary struct {
	mu   sync.Mutex
	docs []Document
	next int
}

func (f *fakeLibrary) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/documents":
		json.NewEncoder(w).Encode(f.docs)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/documents/upload":
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		f.next++
		doc := Document{
			ID:       "doc-" + strconv.Itoa(f.next),
			Filename: hdr.Filename,
			Size:     int64(len(data)),
			Status:   "processed",
			Type:     strings.TrimPrefix(filepath.Ext(hdr.Filename), "."),
		}
		f.docs = append(f.docs, doc)
		json.NewEncoder(w).Encode(UploadResult{ID: doc.ID, Filename: doc.Filename, Status: "success"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/documents/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
		for _, d := range f.docs {
			if d.ID == id {
				json.NewEncoder(w).Encode(d)
				return
			}
		}
		http.Error(w, `{"detail":"Document not found"}`, http.StatusNotFound)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/documents/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
		for i, d := range f.docs {
			if d.ID == id {
				f.docs = append(f.docs[:i], f.docs[i+1:]...)
				w.Write([]byte(`{"message":"deleted"}`))
				return
			}
		}
		http.Error(w, `{"detail":"Document not found"}`, http.StatusNotFound)
	default:
		http.NotFound(w, r)
	}
}

func TestListDocuments_EmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.NotNil(t, docs)
	require.Empty(t, docs)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	docs, err = c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.NotNil(t, docs)
}

func TestListDocuments_Decodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"d1","filename":"report.pdf","size":2048,"upload_time":"2024-05-01T12:00:00.5","status":"processed","type":"pdf"}]`))
	})
	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "report.pdf", docs[0].Filename)
	require.Equal(t, int64(2048), docs[0].Size)
	require.Equal(t, "pdf", docs[0].Type)
	require.Equal(t, 2024, docs[0].UploadTime.Year())
}

func TestUploadThenList_ContainsFilename(t *testing.T) {
	lib := &fakeLibrary{}
	c := newTestClient(t, lib.ServeHTTP)
	ctx := context.Background()

	res, err := c.UploadDocument(ctx, "notes.md", strings.NewReader("# notes"))
	require.NoError(t, err)
	require.Equal(t, "notes.md", res.Filename)

	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "notes.md", docs[0].Filename)
	require.Equal(t, int64(len("# notes")), docs[0].Size)
}

func TestUploadFile(t *testing.T) {
	lib := &fakeLibrary{}
	c := newTestClient(t, lib.ServeHTTP)

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("quarterly numbers"), 0o644))

	res, err := c.UploadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "report.txt", res.Filename)

	_, err = c.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeleteThenList_LacksID(t *testing.T) {
	lib := &fakeLibrary{docs: []Document{{ID: "doc-9", Filename: "only.pdf"}}}
	c := newTestClient(t, lib.ServeHTTP)
	ctx := context.Background()

	require.NoError(t, c.DeleteDocument(ctx, "doc-9"))

	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 0)

	err = c.DeleteDocument(ctx, "doc-9")
	require.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestGetDocument(t *testing.T) {
	lib := &fakeLibrary{docs: []Document{{ID: "doc-1", Filename: "a.pdf", Size: 3}}}
	c := newTestClient(t, lib.ServeHTTP)

	doc, err := c.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, "a.pdf", doc.Filename)

	_, err = c.GetDocument(context.Background(), "doc-2")
	require.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestDeleteDocument_Method(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/documents/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeleteDocument(context.Background(), "a/b"))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"healthy","timestamp":"2024-01-01T00:00:00.000001","version":"1.0.0"}`))
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", h.Status)
	require.Equal(t, "1.0.0", h.Version)
}
