package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// Validation regexes compiled once at package initialization
var (
	repoFullNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+/[a-zA-Z0-9._-]+$`)
	commitSHARegex    = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// ValidateRepoFullName checks the owner/name form used by GitHub payloads
func ValidateRepoFullName(repo string) error {
	if repo == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if !repoFullNameRegex.MatchString(repo) {
		return fmt.Errorf("invalid repository name: %s (expected owner/name)", repo)
	}
	return nil
}

// ValidateCommitSHA checks hex commit sha format
func ValidateCommitSHA(sha string) error {
	if sha == "" {
		return fmt.Errorf("commit sha cannot be empty")
	}
	if !commitSHARegex.MatchString(strings.ToLower(sha)) {
		return fmt.Errorf("invalid commit sha format")
	}
	return nil
}

// ValidateIssueNumber checks issue numbers are positive
func ValidateIssueNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid issue number: %d", n)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
