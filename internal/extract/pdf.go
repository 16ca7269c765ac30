package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"coursenav/internal/domain"
)

// pdfExtractor pulls the text layer out of a PDF. Scanned PDFs with no text
// layer yield empty text, which the caller treats as nothing to index.
type pdfExtractor struct{}

func (pdfExtractor) Extract(path string) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, path, err)
	}
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, path, err)
	}
	return buf.String(), nil
}
