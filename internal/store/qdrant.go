package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"coursenav/internal/domain"
)

// QdrantConfig configures the remote vector backend.
type QdrantConfig struct {
	// URL is the Qdrant base URL, e.g. http://localhost:6333.
	URL string
	// APIKey is optional.
	APIKey string
	// Collection holds this index's points.
	Collection string
	// Dimensions is the vector size the collection is created with.
	Dimensions int
	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration
}

// QdrantIndex implements Index against the Qdrant REST API. The collection
// is created on open with cosine distance. Point IDs are derived
// deterministically from chunk keys so re-upserting a chunk overwrites its
// point.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	dim        int
	client     *http.Client
}

// OpenQdrant connects to Qdrant and ensures the collection exists.
func OpenQdrant(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant URL and collection are required", domain.ErrConfig)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector dimensionality must be positive, got %d", domain.ErrConfig, cfg.Dimensions)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	q := &QdrantIndex{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dim:        cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}

	// PUT is idempotent: 200 when the collection already exists with the
	// same schema, 409 when it exists with a different one.
	err := q.do(ctx, http.MethodPut, q.collectionURL(""), map[string]any{
		"vectors": map[string]any{
			"size":     cfg.Dimensions,
			"distance": "Cosine",
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", cfg.Collection, err)
	}
	return q, nil
}

func (q *QdrantIndex) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.baseURL, q.collection, suffix)
}

// pointID maps a chunk key onto a stable UUID, since Qdrant only accepts
// UUIDs or unsigned integers as point IDs.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("coursenav/chunk/"+key)).String()
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if len(r.Vector) != q.dim {
			return fmt.Errorf("%w: chunk %s: vector has %d dimensions, index expects %d", domain.ErrInputRejected, r.Key(), len(r.Vector), q.dim)
		}
		points[i] = map[string]any{
			"id":     pointID(r.Key()),
			"vector": r.Vector,
			"payload": map[string]any{
				"document_id": r.DocumentID,
				"chunk_key":   r.Key(),
				"chunk_idx":   r.Index,
				"start":       r.Start,
				"end":         r.End,
				"text":        r.Text,
			},
		}
	}
	return q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Replace upserts the new records first, then deletes the document's
// points that are not among them. Point IDs are deterministic, so the
// upsert overwrites surviving chunks in place and a query mid-swap sees
// the old points or the new ones, never a gap.
func (q *QdrantIndex) Replace(ctx context.Context, docID string, records []domain.EmbeddingRecord) error {
	if err := q.Upsert(ctx, records); err != nil {
		return err
	}
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": docID}},
		},
	}
	if len(records) > 0 {
		kept := make([]string, len(records))
		for i, r := range records {
			kept[i] = pointID(r.Key())
		}
		filter["must_not"] = []map[string]any{
			{"has_id": kept},
		}
	}
	return q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), map[string]any{
		"filter": filter,
	}, nil)
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != q.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), q.dim)
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				DocumentID string `json:"document_id"`
				ChunkIdx   int    `json:"chunk_idx"`
				Start      int    `json:"start"`
				End        int    `json:"end"`
				Text       string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				DocumentID: r.Payload.DocumentID,
				Index:      r.Payload.ChunkIdx,
				Start:      r.Payload.Start,
				End:        r.Payload.End,
				Text:       r.Payload.Text,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, docID string) error {
	return q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": docID}},
			},
		},
	}, nil)
}

func (q *QdrantIndex) DeleteAll(ctx context.Context) error {
	// An empty filter matches every point.
	return q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), map[string]any{
		"filter": map[string]any{},
	}, nil)
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close is a no-op; the HTTP client holds no persistent connection state
// worth tearing down.
func (q *QdrantIndex) Close() error { return nil }

// do sends one JSON request and decodes the response into out when non-nil.
// Transport failures and 5xx responses map to ErrBackendUnavailable.
func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: qdrant %s %s: %s", domain.ErrBackendUnavailable, method, url, resp.Status)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
