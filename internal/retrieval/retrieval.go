// Package retrieval ranks knowledge chunks against a query by lexical overlap.
//
// Scoring uses substring containment on both sides: a keyword counts when the
// lowercased query contains it, a query token counts when the lowercased chunk
// content contains it. Short substrings can therefore match inside unrelated
// words; this favours recall and is relied on by existing fixtures.
package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/seanblong/uniqa/pkg/models"
)

const (
	// DefaultLimit is the maximum number of chunks rendered into a context block.
	DefaultLimit = 5

	keywordWeight = 5
	tokenWeight   = 1

	// tokens of this many runes or fewer are dropped from the query
	minTokenRunes = 2
)

// ChunkLister is satisfied by knowledge.Store.
type ChunkLister interface {
	Chunks() []models.KnowledgeChunk
}

// indexed is a chunk with its lowercased fields precomputed.
type indexed struct {
	chunk    models.KnowledgeChunk
	content  string
	keywords []string
}

// Engine scores a fixed set of chunks. It is safe for concurrent use.
type Engine struct {
	chunks []indexed
	limit  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimit overrides DefaultLimit. Non-positive values are ignored.
func WithLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// New builds an Engine over the chunks of src, keeping their order.
func New(src ChunkLister, opts ...Option) *Engine {
	chunks := src.Chunks()
	e := &Engine{
		chunks: make([]indexed, len(chunks)),
		limit:  DefaultLimit,
	}
	for i, c := range chunks {
		kws := make([]string, len(c.Keywords))
		for j, kw := range c.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		e.chunks[i] = indexed{chunk: c, content: strings.ToLower(c.Content), keywords: kws}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Tokenize lowercases query and splits it on whitespace, dropping tokens of
// two characters or fewer.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minTokenRunes {
			out = append(out, f)
		}
	}
	return out
}

// Rank returns the best matching chunks for query: positive scores only,
// highest first, ties kept in store order, at most the engine limit.
func (e *Engine) Rank(query string) []models.ScoredChunk {
	q := strings.ToLower(query)
	tokens := Tokenize(query)

	scored := make([]models.ScoredChunk, 0, len(e.chunks))
	for _, c := range e.chunks {
		score := 0
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				score += keywordWeight
			}
		}
		for _, tok := range tokens {
			if strings.Contains(c.content, tok) {
				score += tokenWeight
			}
		}
		if score > 0 {
			scored = append(scored, models.ScoredChunk{KnowledgeChunk: c.chunk, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > e.limit {
		scored = scored[:e.limit]
	}
	return scored
}

// RetrieveContext renders the ranked chunks for query as a context block, or
// returns "" when nothing matches.
func (e *Engine) RetrieveContext(query string) string {
	return Format(e.Rank(query))
}

// Format renders chunks as "[Category: c]\ncontent" blocks separated by a blank line.
func Format(chunks []models.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = "[Category: " + c.Category + "]\n" + c.Content
	}
	return strings.Join(parts, "\n\n")
}
