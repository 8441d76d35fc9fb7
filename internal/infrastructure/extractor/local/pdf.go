package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// extractPDF reads the text layer of a PDF locally. Scanned PDFs carry
// no text layer; those come back deferred so the AI stage can OCR them.
func (e *Extractor) extractPDF(ctx context.Context, doc domain.DocumentDescriptor) (domain.ExtractionPayload, error) {
	raw, err := e.read(ctx, doc)
	if err != nil {
		return domain.ExtractionPayload{}, err
	}

	text, err := pdfPlainText(raw)
	if err != nil {
		return domain.ExtractionPayload{}, fmt.Errorf("parse pdf %s: %w", doc.Name, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionPayload{DeferredToAI: true}, nil
	}
	return domain.ExtractionPayload{Text: strings.TrimSpace(text)}, nil
}

// pdfPlainText isolates the third-party parser, which panics on some
// malformed cross-reference tables.
func pdfPlainText(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
