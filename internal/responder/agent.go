package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/llm"
	"github.com/comigor/ragchat-go/internal/logger"
)

// FSM States
type FSMState string

const (
	StateIdle           FSMState = "Idle"
	StateReadyToCallLLM FSMState = "ReadyToCallLLM"
	StateExecutingTools FSMState = "ExecutingTools"
	StateDone           FSMState = "Done"  // Terminal: successful completion
	StateError          FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger string

const (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

const defaultSystemPrompt = "You are a helpful assistant answering questions about the user's uploaded documents. " +
	"Use the provided document passages and tools when they are relevant and say so when the documents do not contain the answer."

// DefaultMaxTurns bounds LLM round trips per reply (LLM -> tools -> LLM is one turn).
const DefaultMaxTurns = 5

// Tool is a function the LLM may call.
type Tool struct {
	Definition openai.Tool
	Call       func(ctx context.Context, args map[string]any) (string, error)
}

// Name returns the function name of the tool.
func (t Tool) Name() string {
	if t.Definition.Function == nil {
		return ""
	}
	return t.Definition.Function.Name
}

// Agent answers with an OpenAI-compatible model, running tool calls until the
// model produces content.
type Agent struct {
	llmClient llm.Client
	cfg       config.LLMConfig
	tools     map[string]Tool
	defs      []openai.Tool
	prompts   []string
	maxTurns  int
}

// AgentOption customises an Agent.
type AgentOption func(*Agent)

// WithTools registers tools. A name already registered is skipped.
func WithTools(tools ...Tool) AgentOption {
	return func(a *Agent) {
		for _, t := range tools {
			name := t.Name()
			if name == "" || t.Call == nil {
				continue
			}
			if _, exists := a.tools[name]; exists {
				logger.L.Warn("tool already registered; skipping", "tool", name)
				continue
			}
			a.tools[name] = t
			a.defs = append(a.defs, t.Definition)
		}
	}
}

// WithSystemPrompts appends prompts after the configured system prompt.
func WithSystemPrompts(prompts ...string) AgentOption {
	return func(a *Agent) { a.prompts = append(a.prompts, prompts...) }
}

// WithMaxTurns overrides DefaultMaxTurns.
func WithMaxTurns(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// NewAgent creates an agent for cfg.Model.
func NewAgent(client llm.Client, cfg config.LLMConfig, opts ...AgentOption) *Agent {
	a := &Agent{
		llmClient: client,
		cfg:       cfg,
		tools:     map[string]Tool{},
		maxTurns:  DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) systemPrompt(passages []string) string {
	var b strings.Builder
	if a.cfg.SystemPrompt != "" {
		b.WriteString(a.cfg.SystemPrompt)
	} else {
		b.WriteString(defaultSystemPrompt)
	}
	for _, p := range a.prompts {
		b.WriteString("\n\n")
		b.WriteString(p)
	}
	if len(passages) > 0 {
		b.WriteString("\n\nRelevant passages from the user's documents:")
		for _, p := range passages {
			b.WriteString("\n\n")
			b.WriteString(p)
		}
	}
	return b.String()
}

func (a *Agent) messages(turn Turn) []openai.ChatCompletionMessage {
	var passages []string
	for i, p := range turn.Passages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		passages = append(passages, fmt.Sprintf("[%d] %s:\n%s", i+1, p.Filename, p.Text))
	}
	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt(passages),
	}}
	for _, h := range turn.History {
		role := openai.ChatMessageRoleUser
		if h.Role == api.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Message})
}

// Reply runs the LLM/tool loop for one user message.
func (a *Agent) Reply(ctx context.Context, turn Turn) (string, error) {
	type fsmContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
	}
	fc := &fsmContext{messages: a.messages(turn)}

	fsm := stateless.NewStateMachineWithMode(StateIdle, stateless.FiringQueued)
	fire := func(ctx context.Context, t FSMTrigger) {
		if err := fsm.FireCtx(ctx, t); err != nil {
			logger.L.Warn("FSM fire error", "trigger", t, "error", err)
		}
	}
	fail := func(ctx context.Context, err error) {
		fc.lastError = err
		fire(ctx, TriggerErrorOccurred)
	}

	fsm.Configure(StateIdle).
		Permit(TriggerProcessInput, StateReadyToCallLLM)

	fsm.Configure(StateReadyToCallLLM).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if fc.currentTurn >= a.maxTurns {
				logger.L.Warn("max interaction turns reached", "maxTurns", a.maxTurns)
				fail(ctx, errors.New("exceeded maximum interaction turns"))
				return nil
			}
			fc.currentTurn++
			logger.L.Debug("FSM: entering ReadyToCallLLM", "turn", fc.currentTurn)

			resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.cfg.Model,
				Messages: fc.messages,
				Tools:    a.defs,
			})
			if err != nil {
				logger.L.Error("LLM call failed", "error", err)
				fail(ctx, fmt.Errorf("llm: %w", err))
				return nil
			}
			if len(resp.Choices) == 0 {
				fail(ctx, errors.New("llm returned no choices"))
				return nil
			}
			fc.llmResponse = &resp
			if len(resp.Choices[0].Message.ToolCalls) > 0 {
				fire(ctx, TriggerLLMRequestedTools)
				return nil
			}
			fire(ctx, TriggerLLMRespondedWithContent)
			return nil
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			logger.L.Debug("FSM: entering ExecutingTools")
			msg := fc.llmResponse.Choices[0].Message
			fc.messages = append(fc.messages, msg)
			for _, tc := range msg.ToolCalls {
				fc.messages = append(fc.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    a.executeTool(ctx, tc),
					ToolCallID: tc.ID,
					Name:       tc.Function.Name,
				})
			}
			fire(ctx, TriggerToolsExecutionCompleted)
			return nil
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(_ context.Context, _ ...any) error {
			fc.finalContent = fc.llmResponse.Choices[0].Message.Content
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("FSM: entering Error", "error", fc.lastError)
			return nil
		})

	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		return "", fmt.Errorf("agent: %w", err)
	}

	switch st := fsm.MustState(); st {
	case StateDone:
		return fc.finalContent, nil
	case StateError:
		if fc.lastError == nil {
			return "", errors.New("agent: ended in error state without a specific error")
		}
		return "", fc.lastError
	default:
		return "", fmt.Errorf("agent: ended in unexpected state %v", st)
	}
}

// executeTool runs one tool call. Failures are reported back to the model as
// the tool output.
func (a *Agent) executeTool(ctx context.Context, tc openai.ToolCall) string {
	tool, ok := a.tools[tc.Function.Name]
	if !ok {
		logger.L.Warn("LLM requested unknown tool", "tool", tc.Function.Name)
		return "Error: unknown tool " + tc.Function.Name
	}
	args := map[string]any{}
	if strings.TrimSpace(tc.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			logger.L.Error("failed to unmarshal tool arguments", "tool", tc.Function.Name, "error", err)
			return "Error: could not parse arguments for tool " + tc.Function.Name
		}
	}
	logger.L.Debug("calling tool", "tool", tc.Function.Name, "arguments", args)
	out, err := tool.Call(ctx, args)
	if err != nil {
		logger.L.Warn("tool call failed", "tool", tc.Function.Name, "error", err)
		return "Error: " + err.Error()
	}
	return out
}
