package usecase

import "strings"

// Instruction builders for the intelligence service. Kept terse and
// JSON-strict where a structured reply is parsed; the parsers still
// tolerate free-form output.

func summaryInstruction() string {
	return `Summarize this document in 2-4 sentences.
Focus on what the document is and what it contains. Plain text only.`
}

func nameInstruction() string {
	return `Suggest a short descriptive filename for this document.
Lowercase words separated by hyphens, no extension, max 6 words.
Reply with the filename only.`
}

func fieldsInstruction() string {
	return `Extract the key data fields from this document.
Return a strict JSON object mapping field names to string values
(e.g. dates, amounts, parties, identifiers). No markdown, no extra keys.`
}

func ocrInstruction() string {
	return `Read all visible text in this image and return it verbatim
as plain text, preserving line breaks. No commentary.`
}

func importanceInstruction() string {
	return `Assess the importance of this document in one short sentence:
who it matters to and whether it needs action.`
}

func classificationInstruction(categories []string) string {
	return `Classify this document into exactly one of these categories: ` +
		strings.Join(categories, ", ") + `.
Return a strict JSON object with keys category (string) and
confidence (number from 0 to 1). No markdown, no extra keys.`
}

func insightInstruction() string {
	return `Below is one line per processed document: filename, category, summary.
Identify patterns across the whole set.
Return a strict JSON object with keys overview (string), patterns
(array of strings), recommendations (array of strings), organization
(array of strings). No markdown, no extra keys.`
}
