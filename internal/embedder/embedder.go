// Package embedder maps text to fixed-length vectors for similarity search.
//
// Two implementations exist behind one interface: a deterministic local
// vectorizer that needs no network, and a remote OpenAI-backed embedder.
// The backend is chosen once at startup from configuration; the rest of
// the pipeline only sees the interface.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"coursenav/internal/domain"
)

// Embedder converts text into a vector of fixed dimensionality.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one call. It preserves input
	// order and is semantically equivalent to calling Embed per text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length produced by this backend.
	Dimensions() int

	// ModelName identifies the backend and model, including dimensionality.
	// Records from different model names must never share an index.
	ModelName() string
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty text", domain.ErrInputRejected)
	}
	return nil
}
