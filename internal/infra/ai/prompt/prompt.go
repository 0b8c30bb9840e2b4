package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

// SystemPrompt provides the fixed instruction demanding three labeled
// sections so the analysis reads the same regardless of the error source.
func SystemPrompt() string {
	return "You are a senior software engineer who specializes in debugging and " +
		"fixing errors. When given error information you must respond with:\n" +
		"1. **Root Cause** — a concise explanation of what went wrong.\n" +
		"2. **Suggested Fix** — a specific, actionable fix with code snippets " +
		"where applicable.\n" +
		"3. **Prevention** — a brief note on how to prevent this in the future.\n\n" +
		"Keep the response concise, technical, and directly useful."
}

// UserPrompt builds the backend-agnostic report prompt, one labeled section
// per populated field.
func UserPrompt(report *triage.ErrorReport) string {
	parts := []string{
		fmt.Sprintf("**Source:** %s", report.Source),
		fmt.Sprintf("**Name:** %s", report.Name),
		fmt.Sprintf("**Error message:**\n```\n%s\n```", report.ErrorMessage),
	}
	if report.Details != "" {
		parts = append(parts, fmt.Sprintf("**Details:**\n```\n%s\n```", report.Details))
	}
	if report.Repo != "" {
		parts = append(parts, fmt.Sprintf("**Repository:** %s", report.Repo))
	}
	if report.URL != "" {
		parts = append(parts, fmt.Sprintf("**URL:** %s", report.URL))
	}
	return strings.Join(parts, "\n\n")
}
