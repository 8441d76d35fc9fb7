package usecase

import (
	"testing"
)

func TestParseCategorySignalStructured(t *testing.T) {
	raw := `Here is my answer: {"category":"Invoice","confidence":1.4}`

	signal, kind := parseCategorySignal(raw)
	if kind != ResponseStructured {
		t.Fatalf("expected structured response, got %v", kind)
	}
	if signal.Category != "invoice" {
		t.Fatalf("expected lowercased category invoice, got %q", signal.Category)
	}
	if signal.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", signal.Confidence)
	}
}

func TestParseCategorySignalLabeledLines(t *testing.T) {
	raw := "Category: Receipt\nConfidence: 0.75\nReason: mentions payment"

	signal, kind := parseCategorySignal(raw)
	if kind != ResponseFreeText {
		t.Fatalf("expected free-text response, got %v", kind)
	}
	if signal.Category != "receipt" {
		t.Fatalf("expected category receipt, got %q", signal.Category)
	}
	if signal.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", signal.Confidence)
	}
}

func TestParseCategorySignalMalformed(t *testing.T) {
	signal, kind := parseCategorySignal("I could not decide anything useful here")
	if kind != ResponseMalformed {
		t.Fatalf("expected malformed response, got %v", kind)
	}
	if signal.Category != "" || signal.Confidence != 0 {
		t.Fatalf("expected zero signal, got %+v", signal)
	}
}

func TestParseFieldsStructured(t *testing.T) {
	raw := `{"invoice_no":"INV-42","total":1250.5,"items":["a","b"]}`

	fields, kind := parseFields(raw)
	if kind != ResponseStructured {
		t.Fatalf("expected structured response, got %v", kind)
	}
	if fields["invoice_no"] != "INV-42" {
		t.Fatalf("expected invoice_no INV-42, got %q", fields["invoice_no"])
	}
	if fields["total"] != "1250.5" {
		t.Fatalf("expected total 1250.5, got %q", fields["total"])
	}
	if fields["items"] != `["a","b"]` {
		t.Fatalf("expected raw array for items, got %q", fields["items"])
	}
}

func TestParseFieldsLabeledLines(t *testing.T) {
	raw := "Invoice Number: INV-42\nVendor: Acme Corp\n\nno separator line"

	fields, kind := parseFields(raw)
	if kind != ResponseFreeText {
		t.Fatalf("expected free-text response, got %v", kind)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(fields), fields)
	}
	if fields["Vendor"] != "Acme Corp" {
		t.Fatalf("expected vendor Acme Corp, got %q", fields["Vendor"])
	}
}

func TestParseFieldsMalformed(t *testing.T) {
	fields, kind := parseFields("nothing structured here")
	if kind != ResponseMalformed {
		t.Fatalf("expected malformed response, got %v", kind)
	}
	if fields != nil {
		t.Fatalf("expected nil fields, got %v", fields)
	}
}

func TestParseInsightStructured(t *testing.T) {
	raw := `{"overview":"mostly invoices","patterns":["monthly billing"],"recommendations":["archive by vendor"],"organization":["invoices/2026"]}`

	insight, kind := parseInsight(raw)
	if kind != ResponseStructured {
		t.Fatalf("expected structured response, got %v", kind)
	}
	if !insight.Available {
		t.Fatal("expected insight to be available")
	}
	if insight.Overview != "mostly invoices" {
		t.Fatalf("unexpected overview %q", insight.Overview)
	}
	if len(insight.Patterns) != 1 || insight.Patterns[0] != "monthly billing" {
		t.Fatalf("unexpected patterns %v", insight.Patterns)
	}
}

func TestParseInsightFreeText(t *testing.T) {
	insight, kind := parseInsight("The batch is dominated by utility bills from one vendor.")
	if kind != ResponseFreeText {
		t.Fatalf("expected free-text response, got %v", kind)
	}
	if !insight.Available || insight.Overview == "" {
		t.Fatalf("expected overview-only insight, got %+v", insight)
	}
}

func TestParseInsightEmpty(t *testing.T) {
	insight, kind := parseInsight("   ")
	if kind != ResponseMalformed {
		t.Fatalf("expected malformed response, got %v", kind)
	}
	if insight.Available {
		t.Fatal("expected unavailable insight")
	}
}
