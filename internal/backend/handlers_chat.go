// handlers_chat.go - chat and conversation history handlers
package backend

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/history"
	"github.com/comigor/ragchat-go/internal/library"
	"github.com/comigor/ragchat-go/internal/logger"
	"github.com/comigor/ragchat-go/internal/responder"
)

func (s *Server) handleChat(c echo.Context) error {
	var req api.ChatRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("Invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return NewBadRequestError("Message must not be empty")
	}
	ctx := c.Request().Context()

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	logger.L.Info("new message", "conversation_id", convID, "length", len(req.Message))

	prior := s.convs.List(ctx, convID)
	s.convs.Save(ctx, history.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           api.RoleUser,
		Content:        req.Message,
		CreatedAt:      s.now(),
	})

	var passages []library.Passage
	if s.maxSources > 0 {
		found, err := s.documents.Search(req.Message, s.maxSources)
		if err != nil {
			logger.L.Warn("document search failed; answering without sources", "error", err)
		}
		passages = found
	}

	content, err := s.responder.Reply(ctx, responder.Turn{
		Message:  req.Message,
		History:  prior,
		Passages: passages,
	})
	if err != nil {
		return NewInternalError(err.Error(), err)
	}

	sources := make([]api.Source, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Source())
	}
	resp := api.ChatResponse{
		ID:             uuid.NewString(),
		Content:        content,
		Role:           api.RoleAssistant,
		Timestamp:      api.Timestamp{Time: s.now()},
		ConversationID: convID,
		Sources:        sources,
	}
	s.convs.Save(ctx, history.Message{
		ID:             resp.ID,
		ConversationID: convID,
		Role:           api.RoleAssistant,
		Content:        content,
		CreatedAt:      resp.Timestamp.Time,
		Sources:        sources,
	})
	s.metrics.messages.Inc()
	logger.L.Info("response generated", "conversation_id", convID, "chars", len(content), "sources", len(sources))
	return c.JSON(http.StatusOK, resp)
}

// handleHistory answers unknown conversations with an empty transcript.
func (s *Server) handleHistory(c echo.Context) error {
	id := c.Param("id")
	msgs := s.convs.List(c.Request().Context(), id)
	out := api.History{ConversationID: id, Messages: make([]api.HistoryMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, api.HistoryMessage{
			ID:        m.ID,
			Content:   m.Content,
			Role:      m.Role,
			Timestamp: api.Timestamp{Time: m.CreatedAt},
			Sources:   m.Sources,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleClearHistory(c echo.Context) error {
	id := c.Param("id")
	if !s.convs.Clear(c.Request().Context(), id) {
		return NewNotFoundError("Conversation not found")
	}
	logger.L.Info("conversation cleared", "conversation_id", id)
	return c.JSON(http.StatusOK, map[string]string{"message": "Conversation history cleared"})
}
