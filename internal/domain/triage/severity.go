package triage

import "strings"

// Severity enum
type Severity string

const (
	SeveritySmall  Severity = "small"
	SeverityMedium Severity = "medium"
	SeverityLarge  Severity = "large"
)

// Classify maps an issue title+body to a severity tier. First match wins,
// so an input matching several rules resolves by priority, not by where the
// substring sits in the text. Small authorizes an autonomous fix + PR;
// medium and large get analysis only.
func Classify(title, body string) Severity {
	text := strings.ToLower(title + " " + body)

	if strings.Contains(text, "race condition") || strings.Contains(text, "concurrency") {
		return SeverityLarge
	}
	if strings.Contains(text, "refactor") {
		return SeverityMedium
	}
	for _, kw := range []string{"500", "validation", "error"} {
		if strings.Contains(text, kw) {
			return SeveritySmall
		}
	}
	return SeverityMedium
}
