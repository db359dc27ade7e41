// Package knowledge holds the static knowledge base the assistant answers from.
//
// A Store is built once at startup and never mutated afterwards, so it is safe
// to share between goroutines without locking.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/seanblong/uniqa/pkg/models"
)

// chunkNamespace seeds deterministic IDs for chunks authored without one.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/seanblong/uniqa/knowledge"))

// ErrDuplicateID is returned when two chunks share an ID.
var ErrDuplicateID = errors.New("duplicate knowledge chunk id")

// ErrEmptyContent is returned for chunks without content.
var ErrEmptyContent = errors.New("knowledge chunk has no content")

// Store is an ordered, immutable set of knowledge chunks.
type Store struct {
	chunks []models.KnowledgeChunk
	byID   map[string]int
}

// ChunkSource is anything that can hand back a full knowledge base, such as
// the PostgreSQL repository.
type ChunkSource interface {
	LoadChunks(ctx context.Context) ([]models.KnowledgeChunk, error)
}

// New validates and normalizes chunks and returns a Store preserving their order.
func New(chunks []models.KnowledgeChunk) (*Store, error) {
	s := &Store{
		chunks: make([]models.KnowledgeChunk, 0, len(chunks)),
		byID:   make(map[string]int, len(chunks)),
	}
	for i, c := range chunks {
		n, err := normalize(c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if _, ok := s.byID[n.ID]; ok {
			return nil, fmt.Errorf("chunk %d: %w: %s", i, ErrDuplicateID, n.ID)
		}
		s.byID[n.ID] = len(s.chunks)
		s.chunks = append(s.chunks, n)
	}
	return s, nil
}

// FromSource loads every chunk from src into a new Store.
func FromSource(ctx context.Context, src ChunkSource) (*Store, error) {
	chunks, err := src.LoadChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return New(chunks)
}

// Chunks returns a copy of the chunks in store order.
func (s *Store) Chunks() []models.KnowledgeChunk {
	out := make([]models.KnowledgeChunk, len(s.chunks))
	for i, c := range s.chunks {
		c.Keywords = append([]string(nil), c.Keywords...)
		out[i] = c
	}
	return out
}

// Len returns the number of chunks.
func (s *Store) Len() int { return len(s.chunks) }

// Get returns the chunk with the given ID.
func (s *Store) Get(id string) (models.KnowledgeChunk, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.KnowledgeChunk{}, false
	}
	c := s.chunks[i]
	c.Keywords = append([]string(nil), c.Keywords...)
	return c, true
}

// ChunkID derives the ID used for a chunk authored without one.
func ChunkID(category, content string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(category+"\x00"+content)).String()
}

func normalize(c models.KnowledgeChunk) (models.KnowledgeChunk, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Category = strings.TrimSpace(c.Category)
	c.Content = strings.TrimSpace(c.Content)
	if c.Content == "" {
		return c, ErrEmptyContent
	}
	if c.ID == "" {
		c.ID = ChunkID(c.Category, c.Content)
	}
	kws := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	c.Keywords = kws
	return c, nil
}
