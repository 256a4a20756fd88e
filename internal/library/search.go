package library

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
)

// Passage chunking, in runes.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// Passage is the best matching chunk of a document.
type Passage struct {
	DocumentID string
	Filename   string
	Text       string
	Score      float64
}

// Source converts p to the wire form cited in chat replies.
func (p Passage) Source() api.Source {
	return api.Source{ID: p.DocumentID, Filename: p.Filename, RelevanceScore: p.Score}
}

type passage struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func passageID(docID string, n int) string {
	return fmt.Sprintf("%s#%d", docID, n)
}

// chunk splits text into overlapping windows of ChunkSize runes.
func chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" || !utf8.ValidString(text) {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= ChunkSize {
		return []string{text}
	}
	var out []string
	step := ChunkSize - ChunkOverlap
	for start := 0; start < len(runes); start += step {
		end := min(start+ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// indexDocument indexes the filename as passage 0 and each text chunk after it.
func (l *Library) indexDocument(id, filename, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.index.NewBatch()
	all := append([]string{""}, chunk(text)...)
	for n, c := range all {
		p := passage{DocID: id, Filename: filename, Text: c}
		pid := passageID(id, n)
		if err := batch.Index(pid, p); err != nil {
			return fmt.Errorf("index %s: %w", filename, err)
		}
		l.passages[pid] = p
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("index %s: %w", filename, err)
	}
	return nil
}

func (l *Library) unindexDocument(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.index.NewBatch()
	for pid, p := range l.passages {
		if p.DocID == id {
			batch.Delete(pid)
			delete(l.passages, pid)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		// stale hits are filtered out by Search
		logger.L.Warn("unindex failed", "id", id, "error", err)
	}
}

// Search returns up to k documents matching q, best first, each with its
// highest scoring passage.
func (l *Library) Search(q string, k int) ([]Passage, error) {
	if strings.TrimSpace(q) == "" || k <= 0 {
		return []Passage{}, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k*5, 0, false)
	res, err := l.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	best := map[string]Passage{}
	for _, hit := range res.Hits {
		p, ok := l.passages[hit.ID]
		if !ok {
			continue
		}
		cur, seen := best[p.DocID]
		if seen && cur.Score >= hit.Score {
			continue
		}
		text := p.Text
		if seen && text == "" {
			text = cur.Text
		}
		best[p.DocID] = Passage{DocumentID: p.DocID, Filename: p.Filename, Text: text, Score: hit.Score}
	}

	out := make([]Passage, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
