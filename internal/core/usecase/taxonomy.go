package usecase

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// CategoryProfile is one row of the classification table: a category
// name plus the lexical keywords and regex patterns scored against
// extracted text. Table order matters: score ties resolve to the
// first-seen category.
type CategoryProfile struct {
	Name     string
	Keywords []string
	Patterns []*regexp.Regexp
}

// DefaultTaxonomy is the built-in category table. A category with few
// keywords or patterns can reach a perfect signal from a single match;
// that normalization is intentional and kept as-is.
func DefaultTaxonomy() []CategoryProfile {
	return []CategoryProfile{
		{
			Name:     domain.CategoryBill,
			Keywords: []string{"bill", "amount due", "due date", "utility", "electricity", "payment due"},
			Patterns: compile(`(?i)bill\s*(no|number|#)`, `(?i)amount\s+due`, `(?i)due\s+date`),
		},
		{
			Name:     domain.CategoryInvoice,
			Keywords: []string{"invoice", "tax invoice", "gst", "gstin", "bill to", "invoice no", "subtotal"},
			Patterns: compile(`(?i)invoice\s*(no|number|#)`, `(?i)\bgstin?\b`, `(?i)tax\s+invoice`, `(?i)(₹|\$|€|rs\.?)\s*\d`),
		},
		{
			Name:     domain.CategoryDeliveryChallan,
			Keywords: []string{"challan", "delivery", "dispatch", "consignee", "transporter"},
			Patterns: compile(`(?i)delivery\s+challan`, `(?i)challan\s*(no|number|#)`, `(?i)consignee`),
		},
		{
			Name:     domain.CategoryReport,
			Keywords: []string{"report", "analysis", "findings", "conclusion", "quarterly", "annual"},
			Patterns: compile(`(?i)(annual|quarterly|monthly)\s+report`, `(?i)executive\s+summary`, `(?i)table\s+of\s+contents`),
		},
		{
			Name:     domain.CategoryScannedCopy,
			Keywords: []string{"scanned", "photocopy", "xerox"},
			Patterns: compile(`(?i)scan(ned)?\s+(copy|document)`),
		},
		{
			Name:     domain.CategoryLetter,
			Keywords: []string{"dear", "sincerely", "regards", "yours faithfully", "letter"},
			Patterns: compile(`(?im)^dear\s+`, `(?i)(sincerely|faithfully|regards),?\s*$`),
		},
		{
			Name:     domain.CategoryContract,
			Keywords: []string{"agreement", "contract", "whereas", "party", "terms and conditions", "hereinafter"},
			Patterns: compile(`(?i)this\s+agreement`, `(?i)\bwhereas\b`, `(?i)party\s+of\s+the\s+(first|second)\s+part`),
		},
		{
			Name:     domain.CategoryCertificate,
			Keywords: []string{"certificate", "certify", "certified", "awarded", "completion"},
			Patterns: compile(`(?i)this\s+is\s+to\s+certify`, `(?i)certificate\s+of`),
		},
		{
			Name:     domain.CategoryReceipt,
			Keywords: []string{"receipt", "received", "paid", "cash", "transaction id", "payment received"},
			Patterns: compile(`(?i)receipt\s*(no|number|#)`, `(?i)received\s+(from|with\s+thanks)`, `(?i)transaction\s+id`),
		},
		// "other" carries no signals: it wins only through the
		// minimum-confidence fallback.
		{Name: domain.CategoryOther},
	}
}

type taxonomyFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"categories"`
}

// LoadTaxonomy reads a category table override from a YAML file. The
// file fully replaces the built-in table.
func LoadTaxonomy(path string) ([]CategoryProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}

	var parsed taxonomyFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
	}
	if len(parsed.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no categories", path)
	}

	table := make([]CategoryProfile, 0, len(parsed.Categories))
	for _, entry := range parsed.Categories {
		if entry.Name == "" {
			return nil, fmt.Errorf("taxonomy category with empty name in %s", path)
		}
		profile := CategoryProfile{Name: entry.Name, Keywords: entry.Keywords}
		for _, pattern := range entry.Patterns {
			compiled, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q for category %s: %w", pattern, entry.Name, err)
			}
			profile.Patterns = append(profile.Patterns, compiled)
		}
		table = append(table, profile)
	}
	return table, nil
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
