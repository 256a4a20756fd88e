// Package mcpserver exposes the chat and document operations of the backend
// as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
)

// Name is announced to MCP clients during initialization.
const Name = "ragchat"

// Backend is the subset of *api.Client the tools call.
type Backend interface {
	SendMessage(ctx context.Context, text, conversationID string) (*api.ChatResponse, error)
	History(ctx context.Context, conversationID string) (*api.History, error)
	ListDocuments(ctx context.Context) ([]api.Document, error)
	UploadFile(ctx context.Context, path string) (*api.UploadResult, error)
	DeleteDocument(ctx context.Context, id string) error
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// Server is an MCP server whose tools forward to a Backend.
type Server struct {
	backend Backend
	mcp     *server.MCPServer
}

// New registers every tool on a fresh MCP server.
func New(b Backend, version string) *Server {
	s := &Server{
		backend: b,
		mcp:     server.NewMCPServer(Name, version, server.WithToolCapabilities(false)),
	}
	for _, t := range s.tools() {
		s.mcp.AddTool(t.tool, t.handler)
	}
	return s
}

// Serve speaks MCP on in/out until ctx ends or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	logger.L.Info("mcp server listening on stdio", "tools", len(s.tools()))
	return stdio.Listen(ctx, in, out)
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError reports a failed backend call to the MCP client. API errors carry
// the response body.
func toolError(op string, err error) *mcp.CallToolResult {
	logger.L.Warn("mcp tool failed", "tool", op, "error", err, "status", api.StatusCode(err))
	return mcp.NewToolResultError(api.ErrorMessage(err))
}
