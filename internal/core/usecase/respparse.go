package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// ResponseKind tags the outcome of parsing an intelligence response.
// The service does not guarantee a format, so every parse goes
// JSON-first, then labeled-line fallback, then malformed.
type ResponseKind int

const (
	ResponseStructured ResponseKind = iota
	ResponseFreeText
	ResponseMalformed
)

// CategorySignal is the AI-derived classification input to the fusion
// step: a category name with the model's own confidence.
type CategorySignal struct {
	Category   string
	Confidence float64
}

var (
	categoryLineRe   = regexp.MustCompile(`(?im)^\s*category\s*[:=]\s*"?([a-zA-Z][a-zA-Z-]*)`)
	confidenceLineRe = regexp.MustCompile(`(?im)^\s*confidence\s*[:=]\s*"?([0-9]*\.?[0-9]+)`)
	fieldLineRe      = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z0-9 _-]{0,60}?)\s*:\s*(.+?)\s*$`)
)

// parseCategorySignal extracts a category/confidence pair from a raw
// response. A malformed response yields a zero-confidence signal, never
// an error.
func parseCategorySignal(raw string) (CategorySignal, ResponseKind) {
	candidate := extractJSONObject(raw)
	if gjson.Valid(candidate) {
		category := strings.TrimSpace(gjson.Get(candidate, "category").String())
		if category != "" {
			return CategorySignal{
				Category:   strings.ToLower(category),
				Confidence: clamp01(gjson.Get(candidate, "confidence").Float()),
			}, ResponseStructured
		}
	}

	if m := categoryLineRe.FindStringSubmatch(raw); m != nil {
		signal := CategorySignal{Category: strings.ToLower(m[1])}
		if c := confidenceLineRe.FindStringSubmatch(raw); c != nil {
			if v, err := strconv.ParseFloat(c[1], 64); err == nil {
				signal.Confidence = clamp01(v)
			}
		}
		return signal, ResponseFreeText
	}

	return CategorySignal{}, ResponseMalformed
}

// parseFields extracts a flat key/value map from a structured-data
// extraction response.
func parseFields(raw string) (map[string]string, ResponseKind) {
	candidate := extractJSONObject(raw)
	if gjson.Valid(candidate) {
		parsed := gjson.Parse(candidate)
		if parsed.IsObject() {
			fields := make(map[string]string)
			parsed.ForEach(func(key, value gjson.Result) bool {
				if value.IsObject() || value.IsArray() {
					fields[key.String()] = value.Raw
				} else {
					fields[key.String()] = value.String()
				}
				return true
			})
			if len(fields) > 0 {
				return fields, ResponseStructured
			}
		}
	}

	fields := make(map[string]string)
	for _, m := range fieldLineRe.FindAllStringSubmatch(raw, -1) {
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if key != "" && value != "" {
			fields[key] = value
		}
	}
	if len(fields) > 0 {
		return fields, ResponseFreeText
	}
	return nil, ResponseMalformed
}

// parseInsight extracts the collective-insight payload. Free text is
// accepted as an overview-only insight.
func parseInsight(raw string) (domain.CollectiveInsight, ResponseKind) {
	candidate := extractJSONObject(raw)
	if gjson.Valid(candidate) {
		overview := strings.TrimSpace(gjson.Get(candidate, "overview").String())
		if overview != "" {
			return domain.CollectiveInsight{
				Available:       true,
				Overview:        overview,
				Patterns:        stringSlice(gjson.Get(candidate, "patterns")),
				Recommendations: stringSlice(gjson.Get(candidate, "recommendations")),
				Organization:    stringSlice(gjson.Get(candidate, "organization")),
			}, ResponseStructured
		}
	}

	if text := strings.TrimSpace(raw); text != "" {
		return domain.CollectiveInsight{Available: true, Overview: text}, ResponseFreeText
	}
	return domain.CollectiveInsight{}, ResponseMalformed
}

func stringSlice(result gjson.Result) []string {
	if !result.IsArray() {
		return nil
	}
	var out []string
	for _, item := range result.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
