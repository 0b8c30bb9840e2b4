package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

// TaskID is the opaque identifier returned by the external agent. It is the
// sole correlation key between submission, polling and notification.
type TaskID string

// Status enum
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSuspended  Status = "suspended"
)

// Terminal statuses never change again; exactly one notification is posted
// once a task reaches one.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSuspended:
		return true
	}
	return false
}

// Label renders a status for GitHub comments.
func (s Status) Label() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusSuspended:
		return "Suspended"
	case StatusInProgress:
		return "In Progress"
	default:
		return "Submitted"
	}
}

// StatusFromAgent maps the agent's session-status vocabulary onto the task
// lifecycle. The Devin v1 API reports "exit" / "error" / "suspended" as
// terminal statuses; the newer API spells them "completed" / "failed".
// Anything else is still in progress and keeps the poller looping.
func StatusFromAgent(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "exit", "completed":
		return StatusCompleted
	case "error", "failed":
		return StatusFailed
	case "suspended":
		return StatusSuspended
	default:
		return StatusInProgress
	}
}

// RemediationTask tracks one dispatched unit of agent work.
type RemediationTask struct {
	ID          TaskID          `json:"task_id"`
	Repo        string          `json:"repository"`
	IssueNumber int             `json:"issue_number,omitempty"`
	CommitSHA   string          `json:"commit_sha,omitempty"`
	Severity    triage.Severity `json:"severity"`
	Status      Status          `json:"status"`
	URL         string          `json:"url,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Target renders the notification target for logs and the history table.
func (t *RemediationTask) Target() string {
	if t.IssueNumber > 0 {
		return fmt.Sprintf("issue #%d", t.IssueNumber)
	}
	if t.CommitSHA != "" {
		return "commit " + t.CommitSHA
	}
	return "-"
}
