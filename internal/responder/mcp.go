package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/logger"
)

// MCPClient is the subset of *client.Client used to expose remote tools.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// Toolset is the tools and system prompts gathered from MCP servers.
type Toolset struct {
	Tools   []Tool
	Prompts []string
	clients []MCPClient
}

// Close shuts every MCP client down.
func (ts *Toolset) Close() error {
	var errs []error
	for _, c := range ts.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ts.clients = nil
	return errors.Join(errs...)
}

// Connect starts a client for each configured server. Servers that fail to
// start or initialise are logged and skipped.
func Connect(ctx context.Context, servers []config.MCPServerConfig) *Toolset {
	ts := &Toolset{}
	for _, srv := range servers {
		c, err := dial(ctx, srv)
		if err != nil {
			logger.L.Error("Failed to start MCP client", "name", srv.Name, "error", err)
			continue
		}
		if err := ts.add(ctx, srv.Name, c); err != nil {
			logger.L.Error("Failed to initialize MCP client", "name", srv.Name, "error", err)
			if cerr := c.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
	}
	if len(ts.clients) == 0 && len(servers) > 0 {
		logger.L.Warn("No MCP clients were successfully initialized despite servers configured.", "length", len(servers))
	}
	return ts
}

func dial(ctx context.Context, srv config.MCPServerConfig) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch srv.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(srv.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(srv.Headers))
		}
		c, err = client.NewSSEMCPClient(srv.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(srv.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(srv.Headers))
		}
		c, err = client.NewStreamableHttpClient(srv.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range srv.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// stdio clients are started by the constructor
		return client.NewStdioMCPClient(srv.Command, env, srv.Args...)
	case "":
		return nil, fmt.Errorf("mcp server %q: type not set (sse, streamable_http or stdio)", srv.Name)
	default:
		return nil, fmt.Errorf("mcp server %q: unsupported type %q", srv.Name, srv.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, err
	}
	return c, nil
}

// add initialises c and registers its tools and first argument-less prompt.
func (ts *Toolset) add(ctx context.Context, name string, c MCPClient) error {
	info, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "ragchatd", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		return err
	}
	logger.L.Info("MCP server initialized", "name", name)
	ts.clients = append(ts.clients, c)

	if info != nil && info.Capabilities.Prompts != nil {
		if p := systemPrompt(ctx, name, c); p != "" {
			ts.Prompts = append(ts.Prompts, p)
			logger.L.Info("Discovered system prompt from MCP server", "name", name)
		}
	}

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		logger.L.Warn("Failed to list tools for MCP client", "name", name, "error", err)
		return nil
	}
	for _, t := range res.Tools {
		if slices.ContainsFunc(ts.Tools, func(have Tool) bool { return have.Name() == t.Name }) {
			logger.L.Warn("Tool from MCP server already registered. Skipping.", "tool", t.Name, "name", name)
			continue
		}
		ts.Tools = append(ts.Tools, remoteTool(c, t))
		logger.L.Info("Registered tool from MCP server", "tool", t.Name, "name", name)
	}
	return nil
}

// systemPrompt returns the first assistant text of the server's first prompt
// that takes no arguments.
func systemPrompt(ctx context.Context, name string, c MCPClient) string {
	list, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil || list == nil {
		logger.L.Warn("Failed to list prompts", "name", name, "error", err)
		return ""
	}
	i := slices.IndexFunc(list.Prompts, func(p mcp.Prompt) bool { return len(p.Arguments) == 0 })
	if i == -1 {
		return ""
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = list.Prompts[i].Name
	got, err := c.GetPrompt(ctx, req)
	if err != nil || got == nil {
		logger.L.Warn("Failed to get prompt", "name", name, "error", err)
		return ""
	}
	for _, m := range got.Messages {
		if m.Role != "assistant" {
			continue
		}
		if text, ok := m.Content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func toolSchema(t mcp.Tool) json.RawMessage {
	if len(t.RawInputSchema) > 0 && string(t.RawInputSchema) != "null" {
		return t.RawInputSchema
	}
	if t.InputSchema.Type == "" {
		return emptySchema
	}
	b, err := json.Marshal(t.InputSchema)
	if err != nil || string(b) == "{}" || string(b) == "null" {
		return emptySchema
	}
	return b
}

func remoteTool(c MCPClient, t mcp.Tool) Tool {
	return Tool{
		Definition: openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolSchema(t),
			},
		},
		Call: func(ctx context.Context, args map[string]any) (string, error) {
			req := mcp.CallToolRequest{}
			req.Params.Name = t.Name
			req.Params.Arguments = args
			res, err := c.CallTool(ctx, req)
			if err != nil {
				return "", err
			}
			return toolText(res), nil
		},
	}
}

func toolText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, item := range res.Content {
		if text, ok := item.(mcp.TextContent); ok {
			if res.IsError {
				return "Error: " + text.Text
			}
			return text.Text
		}
	}
	if res.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(b)
}
