package index

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursenav/internal/chunker"
	"coursenav/internal/domain"
	"coursenav/internal/embedder"
	"coursenav/internal/extract"
	"coursenav/internal/store"
)

// memIndex is an in-memory Index for manager tests.
type memIndex struct {
	mu      sync.Mutex
	records map[string]domain.EmbeddingRecord
}

var _ store.Index = (*memIndex)(nil)

func newMemIndex() *memIndex {
	return &memIndex{records: map[string]domain.EmbeddingRecord{}}
}

func (m *memIndex) Upsert(_ context.Context, records []domain.EmbeddingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.Key()] = r
	}
	return nil
}

func (m *memIndex) Query(context.Context, []float32, int) ([]domain.SearchResult, error) {
	return nil, nil
}

func (m *memIndex) Replace(ctx context.Context, docID string, records []domain.EmbeddingRecord) error {
	if err := m.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	return m.Upsert(ctx, records)
}

func (m *memIndex) DeleteByDocument(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, r := range m.records {
		if r.DocumentID == docID {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *memIndex) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]domain.EmbeddingRecord{}
	return nil
}

func (m *memIndex) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memIndex) Close() error { return nil }

func (m *memIndex) all() []domain.EmbeddingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EmbeddingRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func (m *memIndex) docs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, r := range m.records {
		set[r.DocumentID] = true
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// countingEmbedder wraps an embedder and counts embedded texts.
type countingEmbedder struct {
	embedder.Embedder
	mu    sync.Mutex
	texts int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts += len(texts)
	c.mu.Unlock()
	return c.Embedder.EmbedBatch(ctx, texts)
}

type managerFixture struct {
	root     string
	index    *memIndex
	embedder *countingEmbedder
	manager  *Manager
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()
	root := t.TempDir()
	idx := newMemIndex()
	emb := &countingEmbedder{Embedder: embedder.NewLocal(64)}
	ch, err := chunker.New(100, 20)
	require.NoError(t, err)

	return &managerFixture{
		root:     root,
		index:    idx,
		embedder: emb,
		manager: NewManager(ManagerConfig{
			Root:         root,
			ManifestPath: filepath.Join(root, ".coursenav", "manifest.json"),
			Chunker:      ch,
			Extractor:    extract.NewRegistry(),
			Embedder:     emb,
			Index:        idx,
			Logger:       log.New(io.Discard),
		}),
	}
}

func (f *managerFixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReindexFromScratch(t *testing.T) {
	f := newFixture(t)
	f.write(t, "csce629.md", "CSCE 629 Analysis of Algorithms. Prerequisites: CSCE 221.")
	f.write(t, "depts/ecen601.md", "ECEN 601 Mathematical Methods for Signal Processing.")

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.DocsTotal)
	assert.Equal(t, 2, stats.DocsIndexed)
	assert.Equal(t, 0, stats.DocsSkipped)
	assert.Equal(t, 0, stats.DocsFailed)
	assert.Equal(t, []string{"csce629.md", "depts/ecen601.md"}, f.index.docs())

	n, err := f.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, n)
}

func TestReindexSkipsTokenFreeChunks(t *testing.T) {
	f := newFixture(t)
	// Punctuation-only text extracts fine but yields chunks with no tokens,
	// which embed to the zero vector. They must not reach the index.
	f.write(t, "dividers.md", "----- ===== ----- ===== ----- ===== ----- ===== ----- ===== ----- =====")
	f.write(t, "real.md", "CSCE 629 Analysis of Algorithms.")

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.DocsTotal)
	assert.Equal(t, 0, stats.DocsFailed)
	assert.Equal(t, []string{"real.md"}, f.index.docs())
	for _, r := range f.index.all() {
		var sum float32
		for _, x := range r.Vector {
			if x < 0 {
				sum -= x
			} else {
				sum += x
			}
		}
		assert.NotZero(t, sum, "stored vector must not be all zeros")
	}
}

func TestReindexSkipsUnchangedDocuments(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "first document body")
	f.write(t, "b.md", "second document body")

	_, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)
	embeddedFirstRun := f.embedder.texts

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.DocsSkipped)
	assert.Equal(t, 0, stats.DocsIndexed)
	assert.Equal(t, embeddedFirstRun, f.embedder.texts, "unchanged documents must not be re-embedded")
}

func TestReindexPicksUpModifiedDocument(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "original body")

	_, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	// Force a distinct mtime; coarse filesystem clocks would otherwise hide the edit.
	f.write(t, "a.md", "updated body with different text")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "a.md"), future, future))

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocsIndexed)
	assert.Equal(t, 0, stats.DocsSkipped)
}

func TestReindexRemovesDeletedDocuments(t *testing.T) {
	f := newFixture(t)
	f.write(t, "keep.md", "kept document")
	f.write(t, "drop.md", "doomed document")

	_, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "drop.md")))

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocsRemoved)
	assert.Equal(t, []string{"keep.md"}, f.index.docs())
}

func TestReindexFullRebuildsEverything(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "document body")

	_, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	stats, err := f.manager.Reindex(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocsIndexed)
	assert.Equal(t, 0, stats.DocsSkipped)
}

func TestReindexEmbedderChangeForcesRebuild(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "document body")

	_, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)

	// Same corpus, different embedder fingerprint.
	other := NewManager(ManagerConfig{
		Root:         f.root,
		ManifestPath: filepath.Join(f.root, ".coursenav", "manifest.json"),
		Chunker:      mustChunker(t, 100, 20),
		Extractor:    extract.NewRegistry(),
		Embedder:     embedder.NewLocal(32),
		Index:        f.index,
		Logger:       log.New(io.Discard),
	})

	stats, err := other.Reindex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocsIndexed, "fingerprint change must re-embed even unchanged documents")

	m, err := LoadManifest(filepath.Join(f.root, ".coursenav", "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, embedder.NewLocal(32).ModelName(), m.Embedder)
}

func TestReindexSkipsFailedDocuments(t *testing.T) {
	f := newFixture(t)
	f.write(t, "good.md", "healthy document")
	f.write(t, "bad.pdf", "%PDF-1.7 not actually a pdf")

	stats, err := f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocsIndexed)
	assert.Equal(t, 1, stats.DocsFailed)
	assert.Equal(t, []string{"good.md"}, f.index.docs())
}

func TestReindexRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	f.manager.running.Store(true)

	_, err := f.manager.Reindex(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReindexInProgress)

	f.manager.running.Store(false)
	_, err = f.manager.Reindex(context.Background(), false)
	require.NoError(t, err)
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, m.Embedder)
	assert.Empty(t, m.Documents)
}

func TestLoadManifestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.json")
	m := NewManifest("local/hashing-tf-64")
	m.Documents["a.md"] = DocState{ModTime: time.Now().Truncate(time.Second), Chunks: 3}
	require.NoError(t, m.Save(path))

	got, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Embedder, got.Embedder)
	assert.Equal(t, m.Documents["a.md"].Chunks, got.Documents["a.md"].Chunks)
	assert.True(t, m.Documents["a.md"].ModTime.Equal(got.Documents["a.md"].ModTime))
}

func mustChunker(t *testing.T, size, overlap int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(size, overlap)
	require.NoError(t, err)
	return c
}
