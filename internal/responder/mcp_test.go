package responder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ragchat-go/internal/config"
)

type mockMCPClient struct {
	InitializeFunc  func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListToolsFunc   func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPromptsFunc func(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPromptFunc   func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	CallToolFunc    func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	CloseFunc       func() error
}

func (m *mockMCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.ListToolsFunc != nil {
		return m.ListToolsFunc(ctx, req)
	}
	return &mcp.ListToolsResult{Tools: []mcp.Tool{}}, nil
}

func (m *mockMCPClient) ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	if m.ListPromptsFunc != nil {
		return m.ListPromptsFunc(ctx, req)
	}
	return &mcp.ListPromptsResult{}, nil
}

func (m *mockMCPClient) GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if m.GetPromptFunc != nil {
		return m.GetPromptFunc(ctx, req)
	}
	return &mcp.GetPromptResult{}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.CallToolFunc != nil {
		return m.CallToolFunc(ctx, req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "mock default success for " + req.Params.Name}},
	}, nil
}

func (m *mockMCPClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func weatherServer(calls *[]mcp.CallToolRequest) *mockMCPClient {
	return &mockMCPClient{
		ListToolsFunc: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{
				{Name: "get_weather", Description: "Gets weather", RawInputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}}}`)},
				{Name: "no_schema", Description: "Nothing"},
			}}, nil
		},
		CallToolFunc: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			*calls = append(*calls, req)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "The weather in London is sunny."}},
			}, nil
		},
	}
}

func TestToolset_RegistersRemoteTools(t *testing.T) {
	var calls []mcp.CallToolRequest
	ts := &Toolset{}
	require.NoError(t, ts.add(context.Background(), "weather", weatherServer(&calls)))

	require.Len(t, ts.Tools, 2)
	require.Equal(t, "get_weather", ts.Tools[0].Name())
	require.JSONEq(t, `{"type":"object","properties":{"location":{"type":"string"}}}`, string(ts.Tools[0].Definition.Function.Parameters.(json.RawMessage)))

	require.JSONEq(t, string(emptySchema), string(ts.Tools[1].Definition.Function.Parameters.(json.RawMessage)))

	out, err := ts.Tools[0].Call(context.Background(), map[string]any{"location": "London"})
	require.NoError(t, err)
	require.Equal(t, "The weather in London is sunny.", out)
	require.Len(t, calls, 1)
	require.Equal(t, "get_weather", calls[0].Params.Name)
	require.Equal(t, map[string]any{"location": "London"}, calls[0].Params.Arguments)
}

func TestToolset_SkipsDuplicateTools(t *testing.T) {
	var calls []mcp.CallToolRequest
	ts := &Toolset{}
	require.NoError(t, ts.add(context.Background(), "one", weatherServer(&calls)))
	require.NoError(t, ts.add(context.Background(), "two", weatherServer(&calls)))
	require.Len(t, ts.Tools, 2)
	require.Len(t, ts.clients, 2)
}

func TestToolset_InitializeFailure(t *testing.T) {
	ts := &Toolset{}
	c := &mockMCPClient{InitializeFunc: func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
		return nil, errors.New("handshake failed")
	}}
	require.Error(t, ts.add(context.Background(), "bad", c))
	require.Empty(t, ts.clients)
	require.Empty(t, ts.Tools)
}

func TestToolset_ListToolsFailureKeepsClient(t *testing.T) {
	ts := &Toolset{}
	c := &mockMCPClient{ListToolsFunc: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
		return nil, errors.New("not supported")
	}}
	require.NoError(t, ts.add(context.Background(), "quiet", c))
	require.Len(t, ts.clients, 1)
	require.Empty(t, ts.Tools)
}

func TestToolset_DiscoversSystemPrompt(t *testing.T) {
	ts := &Toolset{}
	c := &mockMCPClient{
		InitializeFunc: func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
			res := &mcp.InitializeResult{}
			err := json.Unmarshal([]byte(`{"capabilities":{"prompts":{}}}`), res)
			return res, err
		},
		ListPromptsFunc: func(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
			return &mcp.ListPromptsResult{Prompts: []mcp.Prompt{
				{Name: "needs_args", Arguments: []mcp.PromptArgument{{Name: "x"}}},
				{Name: "system"},
			}}, nil
		},
		GetPromptFunc: func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			require.Equal(t, "system", req.Params.Name)
			return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{
				{Role: "user", Content: mcp.TextContent{Type: "text", Text: "ignored"}},
				{Role: "assistant", Content: mcp.TextContent{Type: "text", Text: "Always cite sources."}},
			}}, nil
		},
	}
	require.NoError(t, ts.add(context.Background(), "prompts", c))
	require.Equal(t, []string{"Always cite sources."}, ts.Prompts)
}

func TestToolset_Close(t *testing.T) {
	closed := 0
	ts := &Toolset{}
	for _, err := range []error{nil, errors.New("boom")} {
		c := &mockMCPClient{CloseFunc: func() error {
			closed++
			return err
		}}
		require.NoError(t, ts.add(context.Background(), "c", c))
	}
	require.EqualError(t, ts.Close(), "boom")
	require.Equal(t, 2, closed)
	require.NoError(t, ts.Close())
}

func TestConnect_SkipsBadServers(t *testing.T) {
	ts := Connect(context.Background(), []config.MCPServerConfig{
		{Name: "untyped"},
		{Name: "weird", Type: "carrier-pigeon"},
	})
	require.Empty(t, ts.Tools)
	require.Empty(t, ts.clients)
	require.NoError(t, ts.Close())
}

func TestToolText(t *testing.T) {
	require.Equal(t, "", toolText(nil))
	require.Equal(t, "Error: nope", toolText(&mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "nope"}},
	}))
	require.Equal(t, "Tool execution resulted in an error without specific text.", toolText(&mcp.CallToolResult{IsError: true}))
}
