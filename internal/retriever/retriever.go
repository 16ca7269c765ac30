// Package retriever answers similarity queries against the vector index.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursenav/internal/domain"
	"coursenav/internal/embedder"
	"coursenav/internal/store"
)

// DefaultQueryTimeout bounds a single retrieval, embedding included.
const DefaultQueryTimeout = 10 * time.Second

// Retriever embeds a query and finds the most similar indexed chunks.
type Retriever struct {
	embedder embedder.Embedder
	index    store.Index
	timeout  time.Duration
}

// New builds a retriever over the given embedder and index. A non-positive
// timeout falls back to DefaultQueryTimeout.
func New(e embedder.Embedder, idx store.Index, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Retriever{embedder: e, index: idx, timeout: timeout}
}

// Retrieve returns up to topK chunks similar to the query, ordered by
// descending score, dropping anything below minScore. An empty result is
// not an error; it means the corpus has nothing relevant.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInputRejected)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInputRejected, topK)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, classifyTimeout(fmt.Errorf("embed query: %w", err))
	}

	results, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, classifyTimeout(fmt.Errorf("query index: %w", err))
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= minScore {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}

// classifyTimeout folds a deadline hit into the backend-unavailable bucket;
// a retrieval that ran out of time is operationally a backend that did not
// answer.
func classifyTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return err
}
