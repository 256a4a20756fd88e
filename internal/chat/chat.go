// Package chat holds the view state of the chat panel: the transcript, the
// conversation reference and the backend connectivity indicator.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
)

// WelcomeText opens every fresh transcript.
const WelcomeText = "Hello! I'm your RAG assistant. Upload documents and ask me questions!"

// Backend is the subset of *api.Client used by the chat panel.
type Backend interface {
	SendMessage(ctx context.Context, text, conversationID string) (*api.ChatResponse, error)
	History(ctx context.Context, conversationID string) (*api.History, error)
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// FSM states of the send cycle.
type State string

const (
	StateIdle    State = "Idle"
	StateSending State = "Sending"
)

// FSM triggers of the send cycle.
type Trigger string

const (
	TriggerSend    Trigger = "Send"
	TriggerReplied Trigger = "Replied"
	TriggerFailed  Trigger = "Failed"
	TriggerReset   Trigger = "Reset"
)

// Message is one entry of the transcript. Messages are never mutated.
type Message struct {
	ID        string
	Content   string
	Role      api.Role
	Timestamp time.Time
	Sources   []api.Source
}

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	Messages       []Message
	State          State
	Connection     Connection
	ConversationID string
}

// CanSend reports whether the send control should be enabled.
func (s Snapshot) CanSend() bool {
	return s.State == StateIdle && s.Connection == ConnConnected
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides time.Now for local message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides the generator of local message ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// Controller owns the chat panel state. All methods are safe for concurrent
// use; blocking methods are meant to run off the UI goroutine.
type Controller struct {
	backend Backend
	now     func() time.Time
	newID   func() string

	mu             sync.Mutex
	fsm            *stateless.StateMachine
	conn           *stateless.StateMachine
	probing        bool
	messages       []Message
	conversationID string

	// epoch changes whenever the transcript is reset; replies carrying an
	// older epoch are dropped.
	epoch      uint64
	life       context.Context
	stop       context.CancelFunc
	session    context.Context
	endSession context.CancelFunc
}

// New creates a chat controller backed by b. Call Start to run the first
// connectivity probe.
func New(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		now:     time.Now,
		newID:   uuid.NewString,
		fsm:     newSendMachine(),
		conn:    newConnectionMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.life, c.stop = context.WithCancel(context.Background())
	c.session, c.endSession = context.WithCancel(c.life)
	c.messages = []Message{c.welcome()}
	return c
}

func newSendMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(TriggerSend, StateSending).
		Ignore(TriggerReset)

	fsm.Configure(StateSending).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("chat: entering Sending")
			return nil
		}).
		Permit(TriggerReplied, StateIdle).
		Permit(TriggerFailed, StateIdle).
		Permit(TriggerReset, StateIdle)

	return fsm
}

func (c *Controller) welcome() Message {
	return Message{ID: "welcome", Content: WelcomeText, Role: api.RoleAssistant, Timestamp: c.now()}
}

// Start runs the initial connectivity probe.
func (c *Controller) Start(ctx context.Context) Connection {
	return c.Probe(ctx)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		Messages:       msgs,
		State:          c.state(),
		Connection:     c.connection(),
		ConversationID: c.conversationID,
	}
}

// ConversationID returns the conversation reference, empty before the first
// successful reply.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Controller) state() State {
	return c.fsm.MustState().(State)
}

func (c *Controller) fire(t Trigger) {
	if err := c.fsm.Fire(t); err != nil {
		logger.L.Warn("chat fsm fire error", "trigger", t, "error", err)
	}
}

// Send appends a user message and asks the backend for a reply. It returns
// false without issuing a request when text is blank, the backend is not
// connected, or a reply is already pending. A failed request appends an
// assistant-role error message instead of returning an error.
func (c *Controller) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.connection() != ConnConnected {
		c.mu.Unlock()
		return false
	}
	if c.state() != StateIdle {
		c.mu.Unlock()
		return false
	}
	c.fire(TriggerSend)
	c.messages = append(c.messages, Message{
		ID:        c.newID(),
		Content:   text,
		Role:      api.RoleUser,
		Timestamp: c.now(),
	})
	epoch, convID, session := c.epoch, c.conversationID, c.session
	c.mu.Unlock()

	reqCtx, cancel := scoped(ctx, session)
	defer cancel()
	resp, err := c.backend.SendMessage(reqCtx, text, convID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		logger.L.Debug("discarding stale chat reply", "error", err)
		return true
	}
	if err != nil {
		logger.L.Error("chat error", "error", err, "status", api.StatusCode(err))
		c.messages = append(c.messages, Message{
			ID:        c.newID(),
			Content:   fmt.Sprintf("Error: %s. Please check if the backend is running.", api.ErrorMessage(err)),
			Role:      api.RoleAssistant,
			Timestamp: c.now(),
		})
		c.fire(TriggerFailed)
		return true
	}

	ts := resp.Timestamp.Time
	if ts.IsZero() {
		ts = c.now()
	}
	c.messages = append(c.messages, Message{
		ID:        resp.ID,
		Content:   resp.Content,
		Role:      api.RoleAssistant,
		Timestamp: ts,
		Sources:   resp.Sources,
	})
	if c.conversationID == "" {
		c.conversationID = resp.ConversationID
	}
	c.fire(TriggerReplied)
	return true
}

// Clear resets the transcript to the welcome message and forgets the
// conversation. A pending request is cancelled and its reply dropped.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.messages = []Message{c.welcome()}
	c.conversationID = ""
}

func (c *Controller) resetLocked() {
	c.endSession()
	c.epoch++
	c.session, c.endSession = context.WithCancel(c.life)
	c.fire(TriggerReset)
}

// Resume replaces the transcript with the server-side history of id and
// continues that conversation. It is refused while a reply is pending.
func (c *Controller) Resume(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("conversation id is required")
	}
	c.mu.Lock()
	if c.state() != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("a reply is still pending")
	}
	epoch, session := c.epoch, c.session
	c.mu.Unlock()

	reqCtx, cancel := scoped(ctx, session)
	defer cancel()
	h, err := c.backend.History(reqCtx, id)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state() != StateIdle {
		return fmt.Errorf("transcript changed while loading history")
	}
	msgs := []Message{c.welcome()}
	for _, m := range h.Messages {
		msgs = append(msgs, Message{
			ID:        m.ID,
			Content:   m.Content,
			Role:      m.Role,
			Timestamp: m.Timestamp.Time,
			Sources:   m.Sources,
		})
	}
	c.resetLocked()
	c.messages = msgs
	c.conversationID = id
	return nil
}

// Close cancels every request issued by the controller. Late replies are
// dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
	c.epoch++
}

// scoped derives a request context from ctx that is also cancelled when scope
// ends.
func scoped(ctx, scope context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(scope, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
