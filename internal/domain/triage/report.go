package triage

// Source enum: which kind of inbound event produced a report
type Source string

const (
	SourceCheckRun     Source = "check_run"
	SourceWorkflowRun  Source = "workflow_run"
	SourceIssueComment Source = "issue_comment"
)

// ErrorReport is the normalized, source-agnostic description of one
// actionable failure. Built once by the extractor, immutable afterwards.
type ErrorReport struct {
	Source       Source `json:"source"`
	Name         string `json:"name"`
	ErrorMessage string `json:"error_message"`
	Details      string `json:"details,omitempty"`
	Repo         string `json:"repository"`
	CommitSHA    string `json:"commit_sha,omitempty"`
	IssueNumber  int    `json:"issue_number,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Deliverable reports carry at least one response target: an issue number
// for a comment reply, or a commit sha for a commit comment.
func (r *ErrorReport) Deliverable() bool {
	return r.IssueNumber > 0 || r.CommitSHA != ""
}
