package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seanblong/uniqa/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// ChunkStore defines the methods that the Store must implement.
type ChunkStore interface {
	Migrate(ctx context.Context) error
	UpsertChunk(ctx context.Context, c models.KnowledgeChunk, position int, contentHash string) error
	GetChunkMeta(ctx context.Context, id string) (ChunkMeta, bool, error)
	LoadChunks(ctx context.Context) ([]models.KnowledgeChunk, error)
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS knowledge_chunks (
  id           TEXT PRIMARY KEY,
  category     TEXT NOT NULL DEFAULT '',
  keywords     TEXT[] NOT NULL DEFAULT '{}',
  content      TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  position     INT NOT NULL DEFAULT 0,
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  updated_at   TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS knowledge_chunks_position_idx
  ON knowledge_chunks (position, id);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// UpsertChunk inserts or updates a chunk. position fixes its place in the
// order LoadChunks returns.
func (s *Store) UpsertChunk(ctx context.Context, c models.KnowledgeChunk, position int, contentHash string) error {
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	const q = `
		INSERT INTO knowledge_chunks (
			id, category, keywords, content, content_hash, position, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			category     = EXCLUDED.category,
			keywords     = EXCLUDED.keywords,
			content      = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			position     = EXCLUDED.position,
			updated_at   = now(),
			created_at   = knowledge_chunks.created_at;`

	_, err := s.pool.Exec(ctx, q, c.ID, c.Category, keywords, c.Content, contentHash, position)
	return err
}

// LoadChunks returns every stored chunk in import order.
func (s *Store) LoadChunks(ctx context.Context) ([]models.KnowledgeChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, keywords, content
		FROM knowledge_chunks
		ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeChunk
	for rows.Next() {
		var c models.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.Category, &c.Keywords, &c.Content); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// ChunkMeta holds metadata about a chunk.
type ChunkMeta struct {
	ContentHash string
	Position    int
}

// GetChunkMeta retrieves metadata for a chunk by id.
func (s *Store) GetChunkMeta(ctx context.Context, id string) (ChunkMeta, bool, error) {
	const q = `
      SELECT content_hash, position
      FROM knowledge_chunks
      WHERE id = $1
      LIMIT 1`
	var m ChunkMeta
	err := s.pool.QueryRow(ctx, q, id).Scan(&m.ContentHash, &m.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChunkMeta{}, false, nil
		}
		return ChunkMeta{}, false, err
	}
	return m, true, nil
}
