package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"coursenav/internal/domain"
)

// DocState records what the index knows about one document.
type DocState struct {
	ModTime time.Time `json:"mod_time"`
	Chunks  int       `json:"chunks"`
}

// Manifest tracks which documents are indexed, at what modification time,
// and under which embedder. It lives next to the index artifact and is the
// source of truth for incremental reindexing.
type Manifest struct {
	// Embedder is the ModelName of the embedder the index was built with.
	// A different embedder invalidates every stored vector.
	Embedder  string              `json:"embedder"`
	Documents map[string]DocState `json:"documents"`
}

// NewManifest returns an empty manifest for the given embedder fingerprint.
func NewManifest(fingerprint string) *Manifest {
	return &Manifest{Embedder: fingerprint, Documents: map[string]DocState{}}
}

// LoadManifest reads a manifest from disk. A missing file yields an empty
// manifest with no fingerprint; unreadable JSON is reported as a corrupt
// index so the caller can rebuild.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewManifest(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", domain.ErrIndexCorrupt, path, err)
	}
	if m.Documents == nil {
		m.Documents = map[string]DocState{}
	}
	return &m, nil
}

// Save writes the manifest atomically via a temp file rename.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
