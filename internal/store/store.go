// Package store persists chunk embeddings and serves similarity queries.
//
// Two backends implement the Index interface: a local SQLite database with
// the sqlite-vec extension, and a remote Qdrant collection. Both use cosine
// distance and both key every vector by its chunk so re-indexing a document
// replaces its vectors instead of duplicating them.
package store

import (
	"context"

	"coursenav/internal/domain"
)

// Index stores embedding records and answers nearest-neighbor queries.
type Index interface {
	// Upsert inserts or replaces records keyed by chunk. Re-upserting the
	// same chunk overwrites its vector and text.
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) error

	// Query returns the topK records most similar to the vector, ordered
	// by descending score. Ties are broken by insertion order. Fewer than
	// topK results is not an error.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)

	// Replace atomically swaps a document's records for the given set.
	// Readers querying during the swap see the old records or the new
	// ones, never an empty document. An empty set removes the document.
	Replace(ctx context.Context, docID string, records []domain.EmbeddingRecord) error

	// DeleteByDocument removes every record belonging to a document.
	// Unknown documents are a no-op.
	DeleteByDocument(ctx context.Context, docID string) error

	// DeleteAll empties the index.
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
