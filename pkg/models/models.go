package models

// KnowledgeChunk is a pre-authored snippet of reference text.
type KnowledgeChunk struct {
	ID       string   `json:"id" yaml:"id"`
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Content  string   `json:"content" yaml:"content"`
}

// ScoredChunk is a chunk ranked against a single query.
type ScoredChunk struct {
	KnowledgeChunk
	Score int `json:"score"`
}
