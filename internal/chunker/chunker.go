// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"fmt"

	"coursenav/internal/domain"
)

// Chunker produces windows of at most maxLen characters where each window
// after the first starts overlap characters before the previous one ended.
type Chunker struct {
	maxLen  int
	overlap int
}

// New validates the window parameters and returns a Chunker. The overlap
// must be strictly smaller than the window size; anything else is a
// configuration error and is rejected here, not per call.
func New(maxLen, overlap int) (*Chunker, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, maxLen)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfig, overlap)
	}
	if overlap >= maxLen {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrConfig, overlap, maxLen)
	}
	return &Chunker{maxLen: maxLen, overlap: overlap}, nil
}

// Chunk splits text into windows. Offsets are rune-based so a multi-byte
// character never straddles a window boundary. Text no longer than the
// window size yields exactly one chunk; empty text yields none. The final
// window absorbs the tail, so a chunk consisting only of overlap is never
// emitted.
func (c *Chunker) Chunk(docID, text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + c.maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: docID,
			Index:      idx,
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// MaxLen returns the configured window size.
func (c *Chunker) MaxLen() int { return c.maxLen }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }
