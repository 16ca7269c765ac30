// Package extract turns corpus files into plain text for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"coursenav/internal/domain"
)

// Extractor reads one file format and returns its plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in formats: txt, md, pdf.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Extractor{}}
	r.Register(plainText{}, "txt", "md")
	r.Register(pdfExtractor{}, "pdf")
	return r
}

// Register binds an extractor to one or more extensions, without dots.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Extensions returns the registered extensions as a set, in the shape the
// walker expects.
func (r *Registry) Extensions() map[string]bool {
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}

// Extract dispatches on the file's extension.
func (r *Registry) Extract(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	return e.Extract(path)
}

// plainText reads a file as UTF-8 text.
type plainText struct{}

func (plainText) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrCorruptFile, path)
	}
	return string(data), nil
}
