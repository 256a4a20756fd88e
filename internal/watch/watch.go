// Package watch uploads documents dropped into a local directory.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/logger"
)

// DefaultExtensions are the document types accepted by the backend.
var DefaultExtensions = []string{".pdf", ".txt", ".docx", ".md"}

// DefaultSettle is how long a file must stay unchanged before it is uploaded.
const DefaultSettle = 500 * time.Millisecond

var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	".vscode":      true,
	".idea":        true,
	"venv":         true,
	".venv":        true,
	"node_modules": true,
}

// Uploader is satisfied by *documents.Controller. Upload reports false when
// the request was not issued.
type Uploader interface {
	Upload(ctx context.Context, path string) bool
}

// Watcher turns file system events into settled document paths.
type Watcher struct {
	fs         *fsnotify.Watcher
	extensions []string
	settle     time.Duration
}

type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New creates a watcher for the given extensions (DefaultExtensions when
// empty). Matching is case-insensitive.
func New(extensions []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	w := &Watcher{fs: fw, settle: DefaultSettle, extensions: config.NormalizeExtensions(extensions)}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) watched(path string) bool {
	return matchExt(path, w.extensions)
}

func matchExt(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Paths watches dir and its subdirectories and emits each created or written
// document once it has been quiet for the settle duration. The channel is
// closed when ctx ends or the watcher is closed.
func (w *Watcher) Paths(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.addTree(dir); err != nil {
		return nil, err
	}
	out := make(chan string, 100)
	go w.loop(ctx, out)
	return out, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, out chan<- string) {
	defer close(out)

	pending := map[string]time.Time{}
	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.L.Warn("watch new directory failed", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !w.watched(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.L.Warn("watch error", "error", err)
		case now := <-tick.C:
			for p, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, p)
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Run uploads every settled document under dir until ctx ends. A document that
// arrives while the uploader is busy waits for it to become free.
func (w *Watcher) Run(ctx context.Context, dir string, up Uploader) error {
	paths, err := w.Paths(ctx, dir)
	if err != nil {
		return err
	}
	logger.L.Info("watching directory", "dir", dir, "extensions", w.extensions)
	for p := range paths {
		w.upload(ctx, up, p)
	}
	return ctx.Err()
}

func (w *Watcher) upload(ctx context.Context, up Uploader, path string) {
	for !up.Upload(ctx, path) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.settle):
		}
	}
	logger.L.Info("uploaded watched file", "path", path)
}

// Scan lists the documents already present under dir, skipping tool and VCS
// directories.
func Scan(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := config.NormalizeExtensions(extensions)
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExt(p, exts) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return out, nil
}
