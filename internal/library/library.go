// Package library stores uploaded documents for the reference backend:
// metadata in SQLite, content on disk and text passages in a bleve index.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/logger"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	ErrTooLarge            = errors.New("file too large")
)

// ValidationError is a rejected upload. Message is meant for the user.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

// StatusProcessed is the status of every stored document.
const StatusProcessed = "processed"

// Library owns the uploaded documents. It is safe for concurrent use.
type Library struct {
	db      *sql.DB
	dir     string
	maxSize int64
	allowed []string
	now     func() time.Time

	mu    sync.RWMutex
	index bleve.Index
	// passages by index id
	passages map[string]passage
}

// Open prepares the upload directory and the documents table, then indexes
// the text documents already on disk.
func Open(ctx context.Context, db *sql.DB, cfg config.StorageConfig) (*Library, error) {
	if db == nil {
		return nil, errors.New("library: nil database")
	}
	dir := cfg.UploadDir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size INTEGER NOT NULL,
		upload_time DATETIME NOT NULL,
		status TEXT NOT NULL,
		type TEXT NOT NULL,
		path TEXT NOT NULL
	);`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	allowed := config.NormalizeExtensions(cfg.AllowedExtensions)
	if len(allowed) == 0 {
		allowed = []string{".pdf", ".txt", ".docx", ".md"}
	}

	l := &Library{
		db:       db,
		dir:      dir,
		maxSize:  cfg.MaxFileSize,
		allowed:  allowed,
		now:      time.Now,
		index:    index,
		passages: map[string]passage{},
	}
	if err := l.reindex(ctx); err != nil {
		index.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the search index.
func (l *Library) Close() error {
	return l.index.Close()
}

func (l *Library) reindex(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx, `SELECT id, filename, type, path FROM documents;`)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var id, filename, typ, path string
		if err := rows.Scan(&id, &filename, &typ, &path); err != nil {
			return fmt.Errorf("load documents: %w", err)
		}
		var text []byte
		if textual(typ) {
			text, err = os.ReadFile(path)
			if err != nil {
				logger.L.Warn("document content missing; indexing filename only", "id", id, "path", path, "error", err)
			}
		}
		if err := l.indexDocument(id, filename, string(text)); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	logger.L.Info("document index rebuilt", "documents", n)
	return nil
}

func (l *Library) checkExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range l.allowed {
		if ext == a {
			return ext, nil
		}
	}
	return "", &ValidationError{
		Err:     ErrExtensionNotAllowed,
		Message: fmt.Sprintf("File type %s not allowed. Allowed: [%s]", ext, strings.Join(l.allowed, ", ")),
	}
}

// Add validates and stores an upload. Content is read up to the configured
// maximum size.
func (l *Library) Add(ctx context.Context, filename string, r io.Reader) (api.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		return api.Document{}, &ValidationError{Err: ErrExtensionNotAllowed, Message: "Missing filename"}
	}
	ext, err := l.checkExtension(filename)
	if err != nil {
		return api.Document{}, err
	}

	src := r
	if l.maxSize > 0 {
		src = io.LimitReader(r, l.maxSize+1)
	}
	content, err := io.ReadAll(src)
	if err != nil {
		return api.Document{}, fmt.Errorf("read upload: %w", err)
	}
	if l.maxSize > 0 && int64(len(content)) > l.maxSize {
		return api.Document{}, &ValidationError{
			Err:     ErrTooLarge,
			Message: fmt.Sprintf("File too large. Max size: %d bytes", l.maxSize),
		}
	}

	doc := api.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		Size:       int64(len(content)),
		UploadTime: api.Timestamp{Time: l.now().UTC()},
		Status:     StatusProcessed,
		Type:       strings.TrimPrefix(ext, "."),
	}
	path := filepath.Join(l.dir, doc.ID+"_"+filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return api.Document{}, fmt.Errorf("save upload: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, size, upload_time, status, type, path) VALUES (?,?,?,?,?,?,?);`,
		doc.ID, doc.Filename, doc.Size, doc.UploadTime.Time, doc.Status, doc.Type, path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			logger.L.Warn("could not remove orphaned upload", "path", path, "error", rmErr)
		}
		return api.Document{}, fmt.Errorf("store document: %w", err)
	}

	var text string
	if textual(doc.Type) {
		text = string(content)
	}
	if err := l.indexDocument(doc.ID, doc.Filename, text); err != nil {
		logger.L.Error("indexing failed; document stored without passages", "id", doc.ID, "error", err)
	}
	logger.L.Info("document uploaded", "id", doc.ID, "filename", doc.Filename, "size", doc.Size)
	return doc, nil
}

const selectDocuments = `SELECT id, filename, size, upload_time, status, type FROM documents`

func scanDocument(row interface{ Scan(...any) error }) (api.Document, error) {
	var (
		d  api.Document
		at time.Time
	)
	if err := row.Scan(&d.ID, &d.Filename, &d.Size, &at, &d.Status, &d.Type); err != nil {
		return api.Document{}, err
	}
	d.UploadTime = api.Timestamp{Time: at}
	return d, nil
}

// List returns every document ordered by upload time. The result is never nil.
func (l *Library) List(ctx context.Context) ([]api.Document, error) {
	rows, err := l.db.QueryContext(ctx, selectDocuments+` ORDER BY upload_time ASC, rowid ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	docs := []api.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Get returns one document or ErrNotFound.
func (l *Library) Get(ctx context.Context, id string) (api.Document, error) {
	d, err := scanDocument(l.db.QueryRowContext(ctx, selectDocuments+` WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return api.Document{}, ErrNotFound
	}
	if err != nil {
		return api.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Delete removes a document, its file and its passages. A missing file is
// only logged.
func (l *Library) Delete(ctx context.Context, id string) (api.Document, error) {
	d, err := l.Get(ctx, id)
	if err != nil {
		return api.Document{}, err
	}
	var path string
	if err := l.db.QueryRowContext(ctx, `SELECT path FROM documents WHERE id = ?;`, id).Scan(&path); err != nil {
		return api.Document{}, fmt.Errorf("delete document: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?;`, id); err != nil {
		return api.Document{}, fmt.Errorf("delete document: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.L.Warn("could not delete file", "path", path, "error", err)
	}
	l.unindexDocument(id)
	logger.L.Info("document deleted", "id", id, "filename", d.Filename)
	return d, nil
}

func textual(typ string) bool {
	switch strings.ToLower(typ) {
	case "txt", "md":
		return true
	}
	return false
}
