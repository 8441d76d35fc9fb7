package local

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// rows beyond this are skipped; classification only needs a sample.
const maxSpreadsheetRows = 500

func (e *Extractor) extractSpreadsheet(ctx context.Context, doc domain.DocumentDescriptor) (domain.ExtractionPayload, error) {
	raw, err := e.read(ctx, doc)
	if err != nil {
		return domain.ExtractionPayload{}, err
	}

	if strings.HasSuffix(strings.ToLower(doc.Name), ".csv") || strings.HasPrefix(doc.MediaType, "text/csv") {
		text, err := csvText(raw)
		if err != nil {
			return domain.ExtractionPayload{}, fmt.Errorf("parse csv %s: %w", doc.Name, err)
		}
		return domain.ExtractionPayload{Text: text}, nil
	}

	text, err := workbookText(raw)
	if err != nil {
		return domain.ExtractionPayload{}, fmt.Errorf("parse workbook %s: %w", doc.Name, err)
	}
	return domain.ExtractionPayload{Text: text}, nil
}

func workbookText(raw []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer book.Close()

	var sb strings.Builder
	total := 0
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			if total >= maxSpreadsheetRows {
				break
			}
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
			total++
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func csvText(raw []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	var sb strings.Builder
	for total := 0; total < maxSpreadsheetRows; total++ {
		record, err := reader.Read()
		if err != nil {
			break
		}
		sb.WriteString(strings.Join(record, " | "))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
