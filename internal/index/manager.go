// Package index coordinates building and refreshing the vector index from
// the document corpus.
package index

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"coursenav/internal/chunker"
	"coursenav/internal/domain"
	"coursenav/internal/embedder"
	"coursenav/internal/extract"
	"coursenav/internal/store"
	"coursenav/internal/walker"
)

// embedBatchSize bounds one embedding request.
const embedBatchSize = 32

// Stats reports reindexing results.
type Stats struct {
	DocsTotal   int
	DocsIndexed int
	DocsSkipped int
	DocsRemoved int
	DocsFailed  int
	Chunks      int
}

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	// Root is the corpus directory.
	Root string
	// ManifestPath is where the document manifest is persisted.
	ManifestPath string
	Chunker      *chunker.Chunker
	Extractor    *extract.Registry
	Embedder     embedder.Embedder
	Index        store.Index
	Logger       *log.Logger
}

// Manager owns the index lifecycle: walking the corpus, deciding which
// documents are stale, and replacing their vectors. At most one reindex
// runs at a time; a second request is rejected, not queued.
type Manager struct {
	root         string
	manifestPath string
	chunker      *chunker.Chunker
	extractor    *extract.Registry
	embedder     embedder.Embedder
	index        store.Index
	log          *log.Logger

	running atomic.Bool
}

// NewManager builds a Manager from its collaborators.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		root:         cfg.Root,
		manifestPath: cfg.ManifestPath,
		chunker:      cfg.Chunker,
		extractor:    cfg.Extractor,
		embedder:     cfg.Embedder,
		index:        cfg.Index,
		log:          logger,
	}
}

// Reindex brings the index in sync with the corpus. When full is false,
// documents whose modification time matches the manifest are skipped.
// A changed embedder fingerprint forces a full rebuild regardless: vectors
// from different models are not comparable.
//
// Each document is replaced atomically: its embeddings are computed in full
// before its old vectors are deleted, so a mid-document failure leaves the
// previous version searchable. Per-document failures are logged and counted,
// not fatal.
func (m *Manager) Reindex(ctx context.Context, full bool) (*Stats, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, domain.ErrReindexInProgress
	}
	defer m.running.Store(false)

	manifest, err := LoadManifest(m.manifestPath)
	if err != nil {
		return nil, err
	}

	fingerprint := m.embedder.ModelName()
	if manifest.Embedder != "" && manifest.Embedder != fingerprint {
		m.log.Info("embedder changed, rebuilding index",
			"from", manifest.Embedder, "to", fingerprint)
		full = true
	}
	if full {
		if err := m.index.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("clear index: %w", err)
		}
		manifest = NewManifest(fingerprint)
	}
	manifest.Embedder = fingerprint

	var stats Stats
	seen := map[string]bool{}

	files, walkErrs := walker.Walk(ctx, m.root, m.extractor.Extensions())
	for fi := range files {
		if err := ctx.Err(); err != nil {
			return &stats, err
		}
		stats.DocsTotal++
		seen[fi.RelPath] = true

		if state, ok := manifest.Documents[fi.RelPath]; ok && state.ModTime.Equal(fi.ModTime) {
			stats.DocsSkipped++
			continue
		}

		chunks, err := m.reindexDocument(ctx, fi)
		if err != nil {
			if ctx.Err() != nil {
				return &stats, err
			}
			m.log.Warn("skipping document", "doc", fi.RelPath, "err", err)
			stats.DocsFailed++
			// Forget a previously good state so the next run retries.
			delete(manifest.Documents, fi.RelPath)
			continue
		}

		manifest.Documents[fi.RelPath] = DocState{ModTime: fi.ModTime, Chunks: chunks}
		stats.DocsIndexed++
		stats.Chunks += chunks
		m.log.Debug("indexed document", "doc", fi.RelPath, "chunks", chunks)
	}
	if err := <-walkErrs; err != nil {
		return &stats, fmt.Errorf("walk corpus: %w", err)
	}

	// Drop documents that vanished from disk.
	for docID := range manifest.Documents {
		if seen[docID] {
			continue
		}
		if err := m.index.DeleteByDocument(ctx, docID); err != nil {
			return &stats, fmt.Errorf("remove %s: %w", docID, err)
		}
		delete(manifest.Documents, docID)
		stats.DocsRemoved++
		m.log.Debug("removed deleted document", "doc", docID)
	}

	if err := manifest.Save(m.manifestPath); err != nil {
		return &stats, fmt.Errorf("save manifest: %w", err)
	}
	return &stats, nil
}

// reindexDocument extracts, chunks, and embeds one document, then swaps its
// vectors into the index. Returns the number of chunks stored.
func (m *Manager) reindexDocument(ctx context.Context, fi walker.FileInfo) (int, error) {
	text, err := m.extractor.Extract(fi.Path)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		// Nothing indexable, e.g. a scanned PDF. Drop any stale vectors.
		if err := m.index.DeleteByDocument(ctx, fi.RelPath); err != nil {
			return 0, err
		}
		return 0, nil
	}

	chunks := m.chunker.Chunk(fi.RelPath, text)

	records := make([]domain.EmbeddingRecord, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := min(i+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		for j, c := range chunks[i:end] {
			if zeroVector(vecs[j]) {
				// A chunk with no tokens embeds to the zero vector, which
				// has no cosine distance to anything. Not worth storing.
				m.log.Debug("skipping token-free chunk", "doc", fi.RelPath, "chunk", c.Index)
				continue
			}
			records = append(records, domain.EmbeddingRecord{Chunk: c, Vector: vecs[j]})
		}
	}

	if err := m.index.Replace(ctx, fi.RelPath, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func zeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
