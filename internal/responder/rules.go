package responder

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

const excerptLen = 280

// Rules is the offline responder used when no LLM is configured. It answers
// from fixed templates and quotes the best matching passage when one exists.
type Rules struct{}

func (Rules) Reply(_ context.Context, turn Turn) (string, error) {
	msg := turn.Message
	lower := strings.ToLower(msg)

	switch {
	case hasWord(lower, "hello") || hasWord(lower, "hi"):
		return "Hello! I'm your RAG assistant. I can help you with questions about your uploaded documents. What would you like to know?", nil
	case len(turn.Passages) > 0:
		return quote(turn), nil
	case strings.Contains(lower, "document") || strings.Contains(lower, "upload"):
		return "I can see you're interested in documents! You can upload files from the document panel. I support PDF, TXT, DOCX, and MD files. Once uploaded, I can answer questions about their content.", nil
	case strings.Contains(lower, "what") && strings.Contains(msg, "?"):
		return fmt.Sprintf("That's a great question! You asked: '%s'\n\n"+
			"In a full RAG system, I would:\n"+
			"- Search through your uploaded documents\n"+
			"- Find relevant passages\n"+
			"- Generate an informed response\n"+
			"- Provide source citations\n\n"+
			"For now, this is a demo response. Try uploading some documents first!", msg), nil
	case strings.Contains(lower, "how"):
		return fmt.Sprintf("Great question about '%s'!\n\n"+
			"Here's how I would help in a real RAG system:\n\n"+
			"1. **Document Processing**: I analyze your uploaded files\n"+
			"2. **Semantic Search**: I find relevant information\n"+
			"3. **Context Assembly**: I gather the most relevant passages\n"+
			"4. **Response Generation**: I create a comprehensive answer\n"+
			"5. **Source Attribution**: I show you where the info came from\n\n"+
			"Try uploading documents and asking specific questions!", msg), nil
	case len(msg) > 50:
		return fmt.Sprintf("I see you have a detailed question!\n\n"+
			"Your message: '%s...'\n\n"+
			"This is a comprehensive query that would benefit from document context. In a production RAG system, I would:\n\n"+
			"- Parse your question for key concepts\n"+
			"- Search relevant documents\n"+
			"- Rank information by relevance\n"+
			"- Synthesize a detailed answer\n\n"+
			"Upload some documents related to your question for better results!", truncate(msg, 100)), nil
	default:
		return fmt.Sprintf("Thanks for your message: '%s'\n\n"+
			"I'm a RAG (Retrieval-Augmented Generation) assistant. I work best when you:\n\n"+
			"- Upload documents I can reference\n"+
			"- Ask specific questions about their content\n"+
			"- Need help understanding complex topics\n\n"+
			"Try asking something like:\n"+
			"- 'What is this document about?'\n"+
			"- 'Summarize the main points'\n"+
			"- 'Explain [specific concept] from the document'\n\n"+
			"What would you like to explore?", msg), nil
	}
}

func quote(turn Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what I found for '%s':\n", turn.Message)
	for _, p := range turn.Passages {
		text := strings.Join(strings.Fields(p.Text), " ")
		if text == "" {
			fmt.Fprintf(&b, "\n- **%s** matches by name.", p.Filename)
			continue
		}
		fmt.Fprintf(&b, "\n- **%s**: %s", p.Filename, truncate(text, excerptLen))
	}
	return b.String()
}

func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if f == word {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
