// Package domain holds the value types shared across the retrieval core.
package domain

import (
	"strconv"
	"time"
)

// Document is a single source file in the corpus.
type Document struct {
	// ID is the stable identifier: the path relative to the corpus root.
	ID string
	// Path is the absolute location on disk.
	Path string
	// Content is the extracted plain text.
	Content string
	// ModTime is the file's last-modified timestamp, used for staleness checks.
	ModTime time.Time
}

// Chunk is a bounded window of a document's text, the atomic retrieval unit.
// Adjacent chunks of the same document share a fixed character overlap.
type Chunk struct {
	DocumentID string
	// Index is the chunk's sequential position within its document.
	Index int
	// Start and End are rune offsets into the document text.
	Start int
	End   int
	Text  string
}

// Key returns the synthetic chunk identifier, unique within an index.
func (c Chunk) Key() string {
	return c.DocumentID + ":" + strconv.Itoa(c.Index)
}

// EmbeddingRecord pairs a chunk with its embedding vector. All records in
// one index share the same vector dimensionality.
type EmbeddingRecord struct {
	Chunk
	Vector []float32
}

// SearchResult is a matching chunk with its similarity score.
type SearchResult struct {
	Chunk
	Score float64
}
