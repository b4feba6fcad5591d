// Package anonymizer scrubs personally identifying patterns from medical
// free text before it is embedded or stored.
package anonymizer

import "regexp"

// substitution replaces every match of pattern with the placeholder. The
// placeholder may reference capture groups ($1) to keep a label visible.
type substitution struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Order matters: the date patterns must run before the generic digit-group
// patterns (phone, CPF) so date fragments are not matched as numbers.
var substitutions = []substitution{
	// Dates DD/MM/YYYY or MM/DD/YYYY.
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), "[DATA]"},
	// ISO dates YYYY-MM-DD.
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "[DATA]"},
	// Dates DD-MM-YYYY.
	{regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`), "[DATA]"},
	// Labeled patient identifiers, keeping the label itself.
	{regexp.MustCompile(`(?i)\b(ID|Patient ID|Paciente ID):\s*\d+\b`), "$1: [PACIENTE_ID]"},
	// Medical record numbers, keeping the label itself.
	{regexp.MustCompile(`(?i)\b(Prontuário|Prontuario|Medical Record):\s*\d+\b`), "$1: [PRONTUARIO]"},
	// Brazilian phone shapes: (XX) XXXX-XXXX, (XX) XXXXX-XXXX, bare digit runs.
	{regexp.MustCompile(`\b(?:\(?\d{2}\)?\s?)?\d{4,5}[-.]?\d{4}\b`), "[TELEFONE]"},
	// Email addresses.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), "[EMAIL]"},
	// CPF numbers with or without separators.
	{regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`), "[CPF]"},
}

// Anonymize replaces dates, patient identifiers, medical record numbers,
// phone numbers, emails and CPF numbers with placeholder tokens. Empty
// input passes through unchanged. The function is pure.
func Anonymize(text string) string {
	if text == "" {
		return text
	}
	for _, sub := range substitutions {
		text = sub.pattern.ReplaceAllString(text, sub.placeholder)
	}
	return text
}

// AnonymizeBatch anonymizes a list of texts in order.
func AnonymizeBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Anonymize(t)
	}
	return out
}
