package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"

	"coursenav/internal/domain"
)

// Defaults for the OpenAI embedding backend.
const (
	DefaultOpenAIModel = "text-embedding-3-small"

	// maxInputBytes is the largest single text accepted by the remote
	// backend. Longer input fails fast instead of being truncated, since
	// silent truncation would corrupt retrieval quality.
	maxInputBytes = 32 << 10

	// maxAttempts covers the initial request plus retries on transient
	// failures, with exponential backoff starting at backoff base.
	maxAttempts        = 3
	defaultBackoffBase = time.Second
)

var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the remote embedding backend.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL overrides the API endpoint, for compatible providers.
	BaseURL string
	// Model defaults to DefaultOpenAIModel.
	Model string
	// Dimensions overrides the model's default vector size.
	Dimensions int
}

// OpenAI embeds text through the OpenAI embeddings API. Transient failures
// (rate limits, 5xx, transport errors) are retried with exponential
// backoff; anything else propagates immediately.
type OpenAI struct {
	client      *openai.Client
	model       string
	dim         int
	backoffBase time.Duration
}

// NewOpenAI validates the configuration and returns a remote embedder.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required for the remote embedding backend", domain.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	dim := cfg.Dimensions
	if dim == 0 {
		var ok bool
		if dim, ok = openAIModelDimensions[cfg.Model]; !ok {
			return nil, fmt.Errorf("%w: unknown embedding model %q, set dimensions explicitly", domain.ErrConfig, cfg.Model)
		}
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		dim:         dim,
		backoffBase: defaultBackoffBase,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrBackendUnavailable)
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one API call, order-preserving.
func (e *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if err := checkText(t); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		if len(t) > maxInputBytes {
			return nil, fmt.Errorf("%w: text %d is %d bytes, backend limit is %d", domain.ErrInputRejected, i, len(t), maxInputBytes)
		}
	}

	var out [][]float32
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(e.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts,
		})
		if err != nil {
			if transientError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}
		vecs := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return fmt.Errorf("embedding index %d out of range", d.Index)
			}
			v := make([]float32, len(d.Embedding))
			copy(v, d.Embedding)
			vecs[d.Index] = v
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// Dimensions returns the vector length.
func (e *OpenAI) Dimensions() int { return e.dim }

// ModelName identifies the remote backend and model.
func (e *OpenAI) ModelName() string { return fmt.Sprintf("openai/%s-%d", e.model, e.dim) }

// transientError reports whether a failure is worth retrying: rate limits,
// server errors, and transport-level failures. Auth and validation errors
// are not.
func transientError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Network-level failure with no HTTP status.
	return true
}

// classifyError maps a final failure onto the error taxonomy: transient
// exhaustion becomes ErrBackendUnavailable, a 400 becomes ErrInputRejected,
// and credential problems pass through untouched.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		case apiErr.HTTPStatusCode == http.StatusBadRequest:
			return fmt.Errorf("%w: %w", domain.ErrInputRejected, err)
		default:
			return fmt.Errorf("embedding request failed: %w", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
}
