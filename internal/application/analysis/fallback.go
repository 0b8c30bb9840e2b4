package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

const maxQuotedMessage = 300

// Ordered rule table: first column matches the combined message+details,
// second column is the advice bullet. Every matching rule contributes, in
// table order.
var fallbackRules = []struct {
	re     *regexp.Regexp
	advice string
}{
	{
		regexp.MustCompile(`(?i)modulenotfounderror|import\s+error`),
		"An import failed. Ensure the dependency is declared in the project manifest and installed.",
	},
	{
		regexp.MustCompile(`(?i)syntaxerror`),
		"There is a syntax error in the code. Check the indicated file and line number for typos or missing punctuation.",
	},
	{
		regexp.MustCompile(`(?i)typeerror`),
		"A TypeError occurred. Verify that function arguments and variable types match their expected signatures.",
	},
	{
		regexp.MustCompile(`(?i)connection\s*(refused|timeout|reset)`),
		"A network connection issue occurred. Verify that the target service is running and reachable.",
	},
	{
		regexp.MustCompile(`(?i)permission\s*denied`),
		"A permission error occurred. Check file/directory permissions and credentials.",
	},
	{
		regexp.MustCompile(`(?i)out\s*of\s*memory|oom`),
		"The process ran out of memory. Consider optimising memory usage or increasing resource limits.",
	},
	{
		regexp.MustCompile(`(?i)timeout`),
		"An operation timed out. Check for slow queries, network issues, or increase the timeout threshold.",
	},
}

const genericAdvice = "Unable to determine an automatic fix. Please review the error details manually."

// Fallback builds a rule-based analysis of a report. Output always carries a
// header naming the report and a truncated quote of the original message.
func Fallback(report *triage.ErrorReport) string {
	combined := report.ErrorMessage + "\n" + report.Details

	var suggestions []string
	for _, rule := range fallbackRules {
		if rule.re.MatchString(combined) {
			suggestions = append(suggestions, rule.advice)
		}
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, genericAdvice)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Automated Error Analysis** (source: `%s`, name: `%s`)\n\n",
		report.Source, report.Name)
	for _, s := range suggestions {
		b.WriteString("- " + s + "\n")
	}

	quoted := report.ErrorMessage
	if len(quoted) > maxQuotedMessage {
		quoted = quoted[:maxQuotedMessage] + "..."
	}
	fmt.Fprintf(&b, "\n> Error: `%s`", quoted)

	return b.String()
}
