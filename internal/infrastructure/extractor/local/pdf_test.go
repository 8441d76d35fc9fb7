package local

import (
	"context"
	"testing"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

func TestExtractPDFRejectsGarbage(t *testing.T) {
	extractor := newTestExtractor(map[string][]byte{
		"broken.pdf": []byte("this is not a pdf at all"),
	})

	_, err := extractor.Extract(context.Background(),
		domain.DocumentDescriptor{Name: "broken.pdf", StoragePath: "broken.pdf"}, domain.FilePDF)
	if err == nil {
		t.Fatal("expected parse error for non-pdf bytes")
	}
}

func TestPDFPlainTextRecoversFromParserPanic(t *testing.T) {
	// A header that passes the signature check but carries a corrupt
	// cross-reference table; the parser must not take the process down.
	raw := []byte("%PDF-1.4\nstartxref\n99999\n%%EOF")
	if _, err := pdfPlainText(raw); err == nil {
		t.Fatal("expected error for corrupt xref table")
	}
}
