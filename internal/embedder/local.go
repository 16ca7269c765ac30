package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimensions is the vector size of the local embedder.
const DefaultDimensions = 384

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Local is a deterministic hashed bag-of-words vectorizer. Each token is
// hashed into a fixed-size term-frequency vector which is then
// L2-normalized, so the inner product of two vectors is their cosine
// similarity. No network, no model files, stable across runs.
type Local struct {
	dim int
}

// NewLocal returns a local embedder with the given dimensionality,
// falling back to DefaultDimensions when dim is not positive.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Local{dim: dim}
}

// Embed vectorizes a single text.
func (e *Local) Embed(_ context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dim)]++
	}
	l2normalize(vec)
	return vec, nil
}

// EmbedBatch vectorizes each text in order.
func (e *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vecs[i] = v
	}
	return vecs, nil
}

// Dimensions returns the vector length.
func (e *Local) Dimensions() int { return e.dim }

// ModelName identifies the local vectorizer and its dimensionality.
func (e *Local) ModelName() string { return fmt.Sprintf("local/hashing-tf-%d", e.dim) }

// l2normalize scales v to unit length. A zero vector is left untouched so
// token-free text scores zero against everything instead of NaN.
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
