package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// collectInsight issues the one cross-document intelligence call of a
// batch. Any failure degrades to an unavailable insight; the batch
// itself is never failed here.
func (s *BatchScheduler) collectInsight(ctx context.Context, results []*domain.PipelineResult) *domain.CollectiveInsight {
	var sb strings.Builder
	for _, result := range results {
		if !result.Success || result.Formatted == nil {
			continue
		}
		category := ""
		if result.Formatted.Classification != nil {
			category = result.Formatted.Classification.Category
		}
		fmt.Fprintf(&sb, "%s | %s | %s\n", result.Document.Name, category, firstLine(result.Formatted.Analysis.Summary))
	}

	raw, err := s.intel.Analyze(ctx, []byte(sb.String()), insightInstruction(), "")
	if err != nil {
		s.logger.Warn("collective_insight_failed", "error", err)
		return &domain.CollectiveInsight{Available: false, Note: fmt.Sprintf("insights unavailable: %v", err)}
	}

	insight, kind := parseInsight(raw)
	if kind == ResponseMalformed {
		return &domain.CollectiveInsight{Available: false, Note: "insights unavailable: malformed response"}
	}
	return &insight
}
