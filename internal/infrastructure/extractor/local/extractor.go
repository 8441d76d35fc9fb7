// Package local performs the cheap extraction pass of the pipeline.
// Whatever cannot be read locally is handed back with DeferredToAI set,
// leaving content resolution to the intelligence stage.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mkovalenko/docupipe/internal/core/domain"
	"github.com/mkovalenko/docupipe/internal/core/ports"
)

type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage, maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Extractor{storage: storage, maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentDescriptor, category domain.FileCategory) (domain.ExtractionPayload, error) {
	switch category {
	case domain.FileImage, domain.FileDocument:
		// No local parser; the AI stage reads these.
		return domain.ExtractionPayload{DeferredToAI: true}, nil
	case domain.FileText:
		return e.extractText(ctx, doc)
	case domain.FileSpreadsheet:
		return e.extractSpreadsheet(ctx, doc)
	case domain.FilePDF:
		return e.extractPDF(ctx, doc)
	default:
		return domain.ExtractionPayload{}, fmt.Errorf("no extractor for category %q", category)
	}
}

func (e *Extractor) extractText(ctx context.Context, doc domain.DocumentDescriptor) (domain.ExtractionPayload, error) {
	raw, err := e.read(ctx, doc)
	if err != nil {
		return domain.ExtractionPayload{}, err
	}
	if !utf8.Valid(raw) {
		return domain.ExtractionPayload{}, fmt.Errorf("file %s is not valid utf-8 text", doc.Name)
	}

	text := strings.TrimSpace(string(raw))
	if flattened, ok := flattenJSON(text); ok {
		text = flattened
	}
	return domain.ExtractionPayload{Text: text}, nil
}

func (e *Extractor) read(ctx context.Context, doc domain.DocumentDescriptor) ([]byte, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return raw, nil
}

// flattenJSON renders a top-level JSON object as "key: value" lines so
// lexical classification sees the field names. Non-JSON input is left
// untouched.
func flattenJSON(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") {
		return "", false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return "", false
	}

	keys := make([]string, 0, len(parsed))
	for key := range parsed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", key, parsed[key])
	}
	return strings.TrimSpace(sb.String()), true
}
