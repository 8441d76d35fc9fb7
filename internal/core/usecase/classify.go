package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mkovalenko/docupipe/internal/core/domain"
	"github.com/mkovalenko/docupipe/internal/core/ports"
)

// FusionWeights combine the three classification signals. They are not
// required to sum to 1; the defaults do.
type FusionWeights struct {
	Keyword float64
	Pattern float64
	AI      float64
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Keyword: 0.3, Pattern: 0.4, AI: 0.3}
}

// DefaultMinConfidence is the combined-score floor below which a
// classification is forced to the "other" category.
const DefaultMinConfidence = 0.6

const maxAlternatives = 3

// ClassifyOptions tune one classification call. AISignal carries the
// category/confidence obtained by the processing stage; when nil the
// engine requests its own signal from the intelligence service.
type ClassifyOptions struct {
	Language     string
	ForceRefresh bool
	AISignal     *CategorySignal
}

// ClassificationEngine fuses deterministic lexical signals with the
// probabilistic AI signal into one category decision. Results are
// cached by document fingerprint; the cache is shared across
// concurrently processed documents.
type ClassificationEngine struct {
	intel         ports.DocumentIntelligence
	cache         ports.ClassificationCache
	table         []CategoryProfile
	weights       FusionWeights
	minConfidence float64
}

func NewClassificationEngine(
	intel ports.DocumentIntelligence,
	cache ports.ClassificationCache,
	table []CategoryProfile,
	weights FusionWeights,
	minConfidence float64,
) *ClassificationEngine {
	if len(table) == 0 {
		table = DefaultTaxonomy()
	}
	if weights == (FusionWeights{}) {
		weights = DefaultFusionWeights()
	}
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	return &ClassificationEngine{
		intel:         intel,
		cache:         cache,
		table:         table,
		weights:       weights,
		minConfidence: minConfidence,
	}
}

// CategoryNames returns the table's category names in order.
func (e *ClassificationEngine) CategoryNames() []string {
	names := make([]string, 0, len(e.table))
	for _, profile := range e.table {
		names = append(names, profile.Name)
	}
	return names
}

// Classify computes the fused category decision for one document.
// Missing or garbled AI input degrades to a zero AI signal; the call
// itself does not fail on it.
func (e *ClassificationEngine) Classify(
	ctx context.Context,
	doc domain.DocumentDescriptor,
	text string,
	opts ClassifyOptions,
) (domain.ClassificationResult, error) {
	fingerprint := Fingerprint(doc, text)

	if e.cache != nil && !opts.ForceRefresh {
		if cached, ok := e.cache.Get(fingerprint); ok {
			return cached, nil
		}
	}

	signal := e.resolveAISignal(ctx, text, opts)

	scores := make([]domain.CategoryScore, 0, len(e.table))
	lower := strings.ToLower(text)

	bestIdx := 0
	var bestSignals domain.SignalScores
	for idx, profile := range e.table {
		signals := domain.SignalScores{
			Keyword: keywordScore(lower, profile.Keywords),
			Pattern: patternScore(text, profile.Patterns),
		}
		if strings.EqualFold(signal.Category, profile.Name) {
			signals.AI = signal.Confidence
		}
		combined := signals.Keyword*e.weights.Keyword +
			signals.Pattern*e.weights.Pattern +
			signals.AI*e.weights.AI

		scores = append(scores, domain.CategoryScore{Category: profile.Name, Score: combined})
		// Strict comparison keeps ties on the first-seen category.
		if combined > scores[bestIdx].Score {
			bestIdx = idx
		}
		if idx == bestIdx {
			bestSignals = signals
		}
	}

	best := scores[bestIdx]
	result := domain.ClassificationResult{
		Category:     best.Category,
		Confidence:   best.Score,
		Signals:      bestSignals,
		Alternatives: rankAlternatives(scores, bestIdx),
		Fingerprint:  fingerprint,
		Rationale: fmt.Sprintf(
			"keyword %.2f, pattern %.2f, ai %.2f combined to %.2f for %q",
			bestSignals.Keyword, bestSignals.Pattern, bestSignals.AI, best.Score, best.Category,
		),
	}
	if best.Score < e.minConfidence {
		result.Category = domain.CategoryOther
		result.Rationale = fmt.Sprintf(
			"top score %.2f for %q below threshold %.2f, forced to %q",
			best.Score, best.Category, e.minConfidence, domain.CategoryOther,
		)
	}

	if e.cache != nil {
		e.cache.Set(fingerprint, result)
	}
	return result, nil
}

func (e *ClassificationEngine) resolveAISignal(ctx context.Context, text string, opts ClassifyOptions) CategorySignal {
	if opts.AISignal != nil {
		return *opts.AISignal
	}
	if e.intel == nil || strings.TrimSpace(text) == "" {
		return CategorySignal{}
	}

	raw, err := e.intel.Analyze(ctx, []byte(text), classificationInstruction(e.CategoryNames()), opts.Language)
	if err != nil {
		return CategorySignal{}
	}
	signal, kind := parseCategorySignal(raw)
	if kind == ResponseMalformed {
		return CategorySignal{}
	}
	return signal
}

// Fingerprint derives the cache key for a document: identity triple for
// file-backed documents, content hash for inline text.
func Fingerprint(doc domain.DocumentDescriptor, text string) string {
	if doc.StoragePath != "" {
		return fmt.Sprintf("%s:%d:%d", doc.Name, doc.Size, doc.ModifiedAt.UnixNano())
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func keywordScore(lowerText string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	found := 0
	for _, keyword := range keywords {
		if strings.Contains(lowerText, strings.ToLower(keyword)) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func patternScore(text string, patterns []*regexp.Regexp) float64 {
	if len(patterns) == 0 {
		return 0
	}
	matched := 0
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			matched++
		}
	}
	return float64(matched) / float64(len(patterns))
}

func rankAlternatives(scores []domain.CategoryScore, winnerIdx int) []domain.CategoryScore {
	rest := make([]domain.CategoryScore, 0, len(scores)-1)
	for idx, score := range scores {
		if idx == winnerIdx {
			continue
		}
		rest = append(rest, score)
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Score > rest[j].Score })
	if len(rest) > maxAlternatives {
		rest = rest[:maxAlternatives]
	}
	return rest
}
