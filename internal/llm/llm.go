// Package llm builds the OpenAI-compatible client used by the reference
// backend to answer chat messages.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ragchat-go/internal/config"
)

// ErrNotConfigured is returned by NewClient when no API key is set.
var ErrNotConfigured = errors.New("llm: api_key is not set")

// Client is the subset of *openai.Client used by the responder; it is easy
// to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates an OpenAI client for cfg. Provider "azure" switches to
// the Azure OpenAI URL scheme; any other provider uses BaseURL as an
// OpenAI-compatible endpoint, or the public API when BaseURL is empty.
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	var oc openai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
	case "azure":
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	default:
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	return openai.NewClientWithConfig(oc), nil
}
