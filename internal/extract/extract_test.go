package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursenav/internal/domain"
)

func TestRegistryExtensions(t *testing.T) {
	r := NewRegistry()
	exts := r.Extensions()
	assert.True(t, exts["txt"])
	assert.True(t, exts["md"])
	assert.True(t, exts["pdf"])
	assert.False(t, exts["docx"])
}

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.md")
	require.NoError(t, os.WriteFile(path, []byte("# CSCE 629\nAnalysis of Algorithms"), 0o644))

	text, err := NewRegistry().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "# CSCE 629\nAnalysis of Algorithms", text)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := NewRegistry().Extract("syllabus.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtractInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binary.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80}, 0o644))

	_, err := NewRegistry().Extract(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
}

func TestExtractCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 this is not really a pdf"), 0o644))

	_, err := NewRegistry().Extract(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewRegistry().Extract(filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)
}

func TestRegisterCustomExtractor(t *testing.T) {
	r := NewRegistry()
	r.Register(plainText{}, "rst")

	path := filepath.Join(t.TempDir(), "doc.rst")
	require.NoError(t, os.WriteFile(path, []byte("restructured"), 0o644))

	text, err := r.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "restructured", text)
}
