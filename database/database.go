package database

import (
	"context"

	"github.com/tieubaoca/knowledge-base-be/types"
)

// Embedder converts a batch of texts into vectors via an external embedding
// endpoint, preserving input order, one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore defines the per-knowledge-base vector operations used by the
// ingestion and query pipelines.
type VectorStore interface {
	// EnsureCollection is idempotent: it creates the knowledge base's
	// collection when absent and does nothing when it already exists.
	EnsureCollection(ctx context.Context, kbID, kbName string) error

	// AddChunks embeds all chunk contents in one logical call and inserts
	// the resulting tuples. When embedding fails, nothing is inserted.
	AddChunks(ctx context.Context, kbID string, chunks []types.Chunk) error

	// Search embeds the query, runs nearest-neighbor retrieval and returns
	// results above the similarity threshold, ranked by descending
	// similarity. A missing or empty collection yields an empty result.
	Search(ctx context.Context, kbID, query string, topK int, similarityThreshold float64) ([]types.SearchResult, error)

	// DeleteChunks removes chunks by id; ids that were never inserted are
	// ignored.
	DeleteChunks(ctx context.Context, kbID string, chunkIDs []string) error

	// DeleteCollection drops the knowledge base's collection; deleting an
	// absent collection is a no-op.
	DeleteCollection(ctx context.Context, kbID string) error
}
