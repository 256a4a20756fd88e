package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type toolEntry struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

func (s *Server) tools() []toolEntry {
	return []toolEntry{
		{
			tool: mcp.NewTool("ask",
				mcp.WithDescription("Ask the RAG assistant a question about the uploaded documents. Pass conversation_id to continue a conversation."),
				mcp.WithString("message", mcp.Required(), mcp.Description("The question or message")),
				mcp.WithString("conversation_id", mcp.Description("Conversation to continue; omit to start a new one")),
			),
			handler: s.ask,
		},
		{
			tool: mcp.NewTool("chat_history",
				mcp.WithDescription("Returns the stored messages of a conversation."),
				mcp.WithString("conversation_id", mcp.Required()),
			),
			handler: s.chatHistory,
		},
		{
			tool:    mcp.NewTool("list_documents", mcp.WithDescription("Lists the uploaded documents.")),
			handler: s.listDocuments,
		},
		{
			tool: mcp.NewTool("upload_document",
				mcp.WithDescription("Uploads a local file (.pdf, .txt, .docx, .md) to the document store."),
				mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file on this machine")),
			),
			handler: s.uploadDocument,
		},
		{
			tool: mcp.NewTool("delete_document",
				mcp.WithDescription("Deletes an uploaded document by id."),
				mcp.WithString("id", mcp.Required()),
			),
			handler: s.deleteDocument,
		},
		{
			tool:    mcp.NewTool("health", mcp.WithDescription("Reports whether the backend is reachable.")),
			handler: s.health,
		},
	}
}

func (s *Server) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.backend.SendMessage(ctx, msg, req.GetString("conversation_id", ""))
	if err != nil {
		return toolError("ask", err), nil
	}
	return jsonResult(resp)
}

func (s *Server) chatHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.backend.History(ctx, id)
	if err != nil {
		return toolError("chat_history", err), nil
	}
	return jsonResult(h)
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.backend.ListDocuments(ctx)
	if err != nil {
		return toolError("list_documents", err), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents uploaded."), nil
	}
	return jsonResult(docs)
}

func (s *Server) uploadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.backend.UploadFile(ctx, path)
	if err != nil {
		return toolError("upload_document", err), nil
	}
	return jsonResult(res)
}

func (s *Server) deleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.backend.DeleteDocument(ctx, id); err != nil {
		return toolError("delete_document", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Document %s deleted.", id)), nil
}

func (s *Server) health(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := s.backend.Health(ctx)
	if err != nil {
		return toolError("health", err), nil
	}
	return jsonResult(h)
}
