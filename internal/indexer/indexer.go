package indexer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/uniqa/internal/store"
	"github.com/seanblong/uniqa/pkg/models"
)

// MaxWorkers caps concurrent upserts
const MaxWorkers = 8

// Indexer imports knowledge chunks into a store.
type Indexer struct {
	Store   store.ChunkStore
	Workers int
}

// Stats summarizes one Run
type Stats struct {
	Upserted int
	Skipped  int
	Failed   int
}

// New creates a new Indexer instance.
func New(s store.ChunkStore) *Indexer {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return &Indexer{Store: s, Workers: n}
}

// hashContent returns the SHA-1 hash of everything retrieval reads from a
// chunk, so keyword edits also count as changes.
func hashContent(c models.KnowledgeChunk) string {
	h := sha1.New()
	h.Write([]byte(c.Category))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(c.Keywords, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(c.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// workItem represents a chunk and its place in the knowledge base
type workItem struct {
	chunk    models.KnowledgeChunk
	position int
}

// processWorkItem upserts one chunk unless the stored copy is identical.
// It reports whether an upsert happened.
func (ix *Indexer) processWorkItem(ctx context.Context, item workItem) (bool, error) {
	hash := hashContent(item.chunk)

	meta, found, err := ix.Store.GetChunkMeta(ctx, item.chunk.ID)
	if err != nil {
		log.Warn().Err(err).Str("id", item.chunk.ID).Msg("chunk meta lookup failed, upserting")
	} else if found && meta.ContentHash == hash && meta.Position == item.position {
		log.Debug().Str("id", item.chunk.ID).Msg("chunk unchanged")
		return false, nil
	}

	log.Info().Str("id", item.chunk.ID).
		Str("category", item.chunk.Category).
		Int("position", item.position).
		Bool("existing", found).
		Msg("indexing chunk")
	if err := ix.Store.UpsertChunk(ctx, item.chunk, item.position, hash); err != nil {
		log.Error().Err(err).Str("id", item.chunk.ID).Msg("upsert failed")
		return false, err
	}
	return true, nil
}

// Run upserts chunks concurrently. Positions follow slice order. The first
// upsert error is returned after all workers finish.
func (ix *Indexer) Run(ctx context.Context, chunks []models.KnowledgeChunk) (Stats, error) {
	numWorkers := ix.Workers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}

	log.Info().Int("workers", numWorkers).Int("chunks", len(chunks)).Msg("starting concurrent import")

	workChan := make(chan workItem, numWorkers*2)
	errorChan := make(chan error, 1)
	var upserted, skipped, failed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Debug().Int("worker", workerID).Msg("worker started")

			for item := range workChan {
				done, err := ix.processWorkItem(ctx, item)
				switch {
				case err != nil:
					failed.Add(1)
					select {
					case errorChan <- err:
					default:
					}
				case done:
					upserted.Add(1)
				default:
					skipped.Add(1)
				}
			}

			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	var sendErr error
send:
	for i, c := range chunks {
		if sendErr = ctx.Err(); sendErr != nil {
			break
		}
		select {
		case workChan <- workItem{chunk: c, position: i}:
		case <-ctx.Done():
			sendErr = ctx.Err()
			break send
		}
	}

	close(workChan)
	wg.Wait()

	stats := Stats{
		Upserted: int(upserted.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	log.Info().Int("upserted", stats.Upserted).Int("skipped", stats.Skipped).Int("failed", stats.Failed).Msg("import finished")

	select {
	case err := <-errorChan:
		return stats, err
	default:
	}
	return stats, sendErr
}
