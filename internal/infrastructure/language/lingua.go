// Package language guesses the language of extracted text when the
// caller did not supply one.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector over a fixed language set. A smaller
// set keeps startup memory reasonable and covers the document corpus.
func NewDetector() *Detector {
	languages := []lingua.Language{
		lingua.English,
		lingua.Hindi,
		lingua.German,
		lingua.French,
		lingua.Spanish,
		lingua.Russian,
	}
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// Detect returns the ISO 639-1 code of the likeliest language, or an
// empty string when no language is confidently detectable.
func (d *Detector) Detect(text string) string {
	if text == "" {
		return ""
	}
	detected, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(detected.IsoCode639_1().String())
}
