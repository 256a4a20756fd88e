// Package documents holds the view state of the document panel. The list it
// exposes is always the full result of the last successful list query.
package documents

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
)

// Error texts shown in the dismissible banner.
const (
	ErrLoadText   = "Failed to load documents"
	ErrDeleteText = "Failed to delete document"
	ErrUploadText = "Upload failed"
)

// DefaultQuota is the display quota used for the usage bar.
const DefaultQuota int64 = 20 * 1024 * 1024

// Backend is the subset of *api.Client used by the document panel.
type Backend interface {
	ListDocuments(ctx context.Context) ([]api.Document, error)
	UploadDocument(ctx context.Context, filename string, r io.Reader) (*api.UploadResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

type State string

const (
	StateIdle      State = "Idle"
	StateLoading   State = "Loading"
	StateUploading State = "Uploading"
	StateDeleting  State = "Deleting"
)

type Trigger string

const (
	TriggerRefresh Trigger = "Refresh"
	TriggerUpload  Trigger = "Upload"
	TriggerDelete  Trigger = "Delete"
	TriggerReload  Trigger = "Reload"
	TriggerDone    Trigger = "Done"
	TriggerFailed  Trigger = "Failed"
)

// Snapshot is a consistent copy of the panel state.
type Snapshot struct {
	Documents []api.Document
	State     State
	Error     string
	TotalSize int64
	Quota     int64
}

// Loading reports whether a list query is running.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// Uploading reports whether an upload is running.
func (s Snapshot) Uploading() bool { return s.State == StateUploading }

// Busy reports whether any request is in flight.
func (s Snapshot) Busy() bool { return s.State != StateIdle }

// UsagePercent is TotalSize relative to Quota, in percent. It may exceed 100.
func (s Snapshot) UsagePercent() float64 {
	if s.Quota <= 0 {
		return 0
	}
	return float64(s.TotalSize) / float64(s.Quota) * 100
}

type Option func(*Controller)

// WithQuota sets the display quota. Non-positive values keep the default.
func WithQuota(bytes int64) Option {
	return func(c *Controller) {
		if bytes > 0 {
			c.quota = bytes
		}
	}
}

// Controller owns the document panel state. Methods block until the backend
// answers and are safe for concurrent use.
type Controller struct {
	backend Backend
	quota   int64

	mu     sync.Mutex
	fsm    *stateless.StateMachine
	docs   []api.Document
	errMsg string
	closed bool

	life context.Context
	stop context.CancelFunc
}

// New creates a document controller. The list stays empty until Refresh.
func New(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		quota:   DefaultQuota,
		fsm:     newMachine(),
		docs:    []api.Document{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.life, c.stop = context.WithCancel(context.Background())
	return c
}

func newMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(TriggerRefresh, StateLoading).
		Permit(TriggerUpload, StateUploading).
		Permit(TriggerDelete, StateDeleting)

	fsm.Configure(StateLoading).
		Permit(TriggerDone, StateIdle).
		Permit(TriggerFailed, StateIdle)

	fsm.Configure(StateUploading).
		Permit(TriggerReload, StateLoading).
		Permit(TriggerFailed, StateIdle)

	fsm.Configure(StateDeleting).
		Permit(TriggerReload, StateLoading).
		Permit(TriggerFailed, StateIdle)

	return fsm
}

func (c *Controller) state() State {
	return c.fsm.MustState().(State)
}

func (c *Controller) fire(t Trigger) {
	if err := c.fsm.Fire(t); err != nil {
		logger.L.Warn("documents fsm fire error", "trigger", t, "error", err)
	}
}

// begin moves the idle machine with t. It reports false when another request
// is in flight or the controller is closed.
func (c *Controller) begin(t Trigger) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state() != StateIdle {
		return false
	}
	c.fire(t)
	return true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]api.Document, len(c.docs))
	copy(docs, c.docs)
	var total int64
	for _, d := range docs {
		total += d.Size
	}
	return Snapshot{
		Documents: docs,
		State:     c.state(),
		Error:     c.errMsg,
		TotalSize: total,
		Quota:     c.quota,
	}
}

// Refresh replaces the list with the backend's. It returns false when a
// request is already in flight.
func (c *Controller) Refresh(ctx context.Context) bool {
	if !c.begin(TriggerRefresh) {
		return false
	}
	c.load(ctx)
	return true
}

// load runs in the Loading state and always leaves the machine Idle.
func (c *Controller) load(ctx context.Context) {
	logger.L.Debug("loading documents")
	reqCtx, cancel := c.scoped(ctx)
	defer cancel()
	docs, err := c.backend.ListDocuments(reqCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logger.L.Error("failed to load documents", "error", err)
		if !c.closed {
			c.errMsg = ErrLoadText
		}
		c.fire(TriggerFailed)
		return
	}
	logger.L.Debug("documents loaded", "count", len(docs))
	if !c.closed {
		c.docs = docs
		c.errMsg = ""
	}
	c.fire(TriggerDone)
}

// Upload sends the local file at path and reloads the list on success. It
// returns false without a request when path is empty or a request is in
// flight.
func (c *Controller) Upload(ctx context.Context, path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	if !c.begin(TriggerUpload) {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		c.fail("upload", err, err.Error())
		return true
	}
	defer f.Close()
	c.upload(ctx, filepath.Base(path), f)
	return true
}

// UploadReader is Upload for content that is not a local file.
func (c *Controller) UploadReader(ctx context.Context, filename string, r io.Reader) bool {
	if strings.TrimSpace(filename) == "" || r == nil {
		return false
	}
	if !c.begin(TriggerUpload) {
		return false
	}
	c.upload(ctx, filename, r)
	return true
}

func (c *Controller) upload(ctx context.Context, filename string, r io.Reader) {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()

	logger.L.Info("starting upload", "filename", filename)
	reqCtx, cancel := c.scoped(ctx)
	defer cancel()
	res, err := c.backend.UploadDocument(reqCtx, filename, r)
	if err != nil {
		msg := api.ErrorMessage(err)
		if msg == "" {
			msg = ErrUploadText
		}
		c.fail("upload", err, msg)
		return
	}
	logger.L.Info("upload successful", "filename", res.Filename, "id", res.ID)
	c.reload(ctx)
}

// Delete removes the document id and reloads the list on success. It returns
// false without a request when id is empty or a request is in flight.
func (c *Controller) Delete(ctx context.Context, id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	if !c.begin(TriggerDelete) {
		return false
	}
	logger.L.Info("deleting document", "id", id)
	reqCtx, cancel := c.scoped(ctx)
	defer cancel()
	if err := c.backend.DeleteDocument(reqCtx, id); err != nil {
		c.fail("delete", err, ErrDeleteText)
		return true
	}
	logger.L.Info("document deleted", "id", id)
	c.reload(ctx)
	return true
}

func (c *Controller) reload(ctx context.Context) {
	c.mu.Lock()
	c.fire(TriggerReload)
	c.mu.Unlock()
	c.load(ctx)
}

func (c *Controller) fail(op string, err error, msg string) {
	logger.L.Error(op+" failed", "error", err, "status", api.StatusCode(err))
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.errMsg = msg
	}
	c.fire(TriggerFailed)
}

// DismissError clears the banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// Close cancels in-flight requests. Later results leave the state untouched.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stop()
}

func (c *Controller) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
