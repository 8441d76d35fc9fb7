package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}
	return path
}

func TestLoadTaxonomyReplacesTable(t *testing.T) {
	path := writeTaxonomy(t, `
categories:
  - name: memo
    keywords: [memo, internal]
    patterns: ['(?i)internal\s+memo']
  - name: other
`)

	table, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(table))
	}
	if table[0].Name != "memo" || len(table[0].Keywords) != 2 {
		t.Fatalf("unexpected first category %+v", table[0])
	}
	if len(table[0].Patterns) != 1 || !table[0].Patterns[0].MatchString("Internal Memo") {
		t.Fatalf("pattern did not compile or match: %+v", table[0].Patterns)
	}
}

func TestLoadTaxonomyRejectsBadPattern(t *testing.T) {
	path := writeTaxonomy(t, `
categories:
  - name: broken
    patterns: ['(unclosed']
`)
	if _, err := LoadTaxonomy(path); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestLoadTaxonomyRejectsEmptyTable(t *testing.T) {
	path := writeTaxonomy(t, "categories: []\n")
	if _, err := LoadTaxonomy(path); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestLoadTaxonomyMissingFile(t *testing.T) {
	if _, err := LoadTaxonomy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultTaxonomyEndsWithOther(t *testing.T) {
	table := DefaultTaxonomy()
	last := table[len(table)-1]
	if last.Name != domain.CategoryOther {
		t.Fatalf("expected trailing fallback category, got %q", last.Name)
	}
	if len(last.Keywords) != 0 || len(last.Patterns) != 0 {
		t.Fatal("fallback category must carry no signals")
	}
}
