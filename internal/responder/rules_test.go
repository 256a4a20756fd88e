package responder

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ragchat-go/internal/library"
)

func reply(t *testing.T, turn Turn) string {
	t.Helper()
	out, err := Rules{}.Reply(context.Background(), turn)
	require.NoError(t, err)
	return out
}

func TestRules(t *testing.T) {
	tests := []struct {
		name    string
		message string
		prefix  string
	}{
		{"greeting", "Hi there", "Hello! I'm your RAG assistant."},
		{"greeting mid sentence", "well, hello!", "Hello! I'm your RAG assistant."},
		{"word containing hi", "this is fine", "Thanks for your message: 'this is fine'"},
		{"documents", "Can I upload a PDF", "I can see you're interested in documents!"},
		{"what question", "What is RAG?", "That's a great question! You asked: 'What is RAG?'"},
		{"what without question mark", "what is rag", "Thanks for your message"},
		{"how", "How does it work", "Great question about 'How does it work'!"},
		{"long", strings.Repeat("x", 51), "I see you have a detailed question!"},
		{"default", "ok", "Thanks for your message: 'ok'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := reply(t, Turn{Message: tc.message})
			assert.True(t, strings.HasPrefix(out, tc.prefix), "got %q", out)
		})
	}
}

func TestRules_LongMessageTruncated(t *testing.T) {
	msg := strings.Repeat("a", 120)
	out := reply(t, Turn{Message: msg})
	require.Contains(t, out, "'"+strings.Repeat("a", 100)+"...'")
	require.NotContains(t, out, strings.Repeat("a", 101))
}

func TestRules_QuotesPassages(t *testing.T) {
	out := reply(t, Turn{
		Message: "launch date",
		Passages: []library.Passage{
			{Filename: "plan.md", Text: "The launch\n\nis   on friday."},
			{Filename: "launch.pdf"},
		},
	})
	require.Equal(t, "Here is what I found for 'launch date':\n"+
		"\n- **plan.md**: The launch is on friday."+
		"\n- **launch.pdf** matches by name.", out)

	// greetings win over passages
	out = reply(t, Turn{Message: "hi", Passages: []library.Passage{{Filename: "x.md"}}})
	require.True(t, strings.HasPrefix(out, "Hello!"))
}
