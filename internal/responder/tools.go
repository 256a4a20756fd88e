package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ragchat-go/internal/library"
)

// Searcher is satisfied by *library.Library.
type Searcher interface {
	Search(q string, k int) ([]library.Passage, error)
}

const defaultSearchLimit = 3

var searchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Words to look for in the uploaded documents"},
    "limit": {"type": "integer", "description": "Maximum number of documents to return"}
  },
  "required": ["query"]
}`)

// SearchTool lets the model query the document library itself.
func SearchTool(s Searcher) Tool {
	return Tool{
		Definition: openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "search_documents",
				Description: "Full-text search over the user's uploaded documents. Returns the best passage of each matching document.",
				Parameters:  searchSchema,
			},
		},
		Call: func(_ context.Context, args map[string]any) (string, error) {
			q, _ := args["query"].(string)
			if strings.TrimSpace(q) == "" {
				return "", fmt.Errorf("query is required")
			}
			k := defaultSearchLimit
			// JSON numbers decode as float64
			if n, ok := args["limit"].(float64); ok && n > 0 {
				k = int(n)
			}
			hits, err := s.Search(q, k)
			if err != nil {
				return "", err
			}
			if len(hits) == 0 {
				return "No matching documents.", nil
			}
			var b strings.Builder
			for i, h := range hits {
				if i > 0 {
					b.WriteString("\n\n")
				}
				fmt.Fprintf(&b, "[%d] %s (score %.2f)", i+1, h.Filename, h.Score)
				if h.Text != "" {
					b.WriteString("\n")
					b.WriteString(h.Text)
				}
			}
			return b.String(), nil
		},
	}
}
