package domain

// Document categories recognized by the hybrid classification engine.
// CategoryOther is the fallback when no category clears the
// minimum-confidence threshold.
const (
	CategoryBill            = "bill"
	CategoryInvoice         = "invoice"
	CategoryDeliveryChallan = "delivery-challan"
	CategoryReport          = "report"
	CategoryScannedCopy     = "scanned-copy"
	CategoryLetter          = "letter"
	CategoryContract        = "contract"
	CategoryCertificate     = "certificate"
	CategoryReceipt         = "receipt"
	CategoryOther           = "other"
)

// SignalScores are the three raw sub-scores that produced a category
// decision, kept for explainability.
type SignalScores struct {
	Keyword float64 `json:"keyword"`
	Pattern float64 `json:"pattern"`
	AI      float64 `json:"ai"`
}

// CategoryScore is one (category, combined score) pair.
type CategoryScore struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// ClassificationResult is the fused decision of the classification
// engine. Confidence equals the maximum combined score across
// categories even when the category was forced to "other".
type ClassificationResult struct {
	Category     string          `json:"category"`
	Confidence   float64         `json:"confidence"`
	Rationale    string          `json:"rationale"`
	Alternatives []CategoryScore `json:"alternatives,omitempty"`
	Signals      SignalScores    `json:"signals"`
	Fingerprint  string          `json:"fingerprint"`
}
