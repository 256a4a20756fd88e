// Package storage opens the SQLite database shared by the reference backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/ragchat-go/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// OpenSQLite opens path and verifies the connection. In-memory databases are
// limited to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": {"busy_timeout(10000)", "foreign_keys(1)"},
	}.Encode()
	if path == MemoryPath {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	logger.L.Info("sqlite database opened", "path", path)
	return db, nil
}
