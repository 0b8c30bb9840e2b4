package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  Severity
	}{
		{"race condition is large", "Race condition in queue", "concurrency bug", SeverityLarge},
		{"concurrency alone is large", "Weird behaviour", "looks like a CONCURRENCY problem", SeverityLarge},
		{"large beats small triggers", "Race condition causing 500 errors", "please refactor", SeverityLarge},
		{"refactor is medium", "Refactor auth module", "needs refactor", SeverityMedium},
		{"refactor beats small triggers", "Refactor this 500 handler", "", SeverityMedium},
		{"500 is small", "500 Internal Server Error on /api/users endpoint", "server returns a 500 error", SeveritySmall},
		{"validation is small", "Validation fails", "validation error on input", SeveritySmall},
		{"error keyword is small", "Something broke", "there is an error in the logs", SeveritySmall},
		{"default is medium", "Update readme", "typo fix", SeverityMedium},
		{"case insensitive", "RACE CONDITION", "", SeverityLarge},
		{"match in body only", "Broken", "intermittent race condition under load", SeverityLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.title, tt.body))
		})
	}
}
