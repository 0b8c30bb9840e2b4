package tasks

import (
	"context"

	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

// CreateTaskRequest for the Agent port
type CreateTaskRequest struct {
	RepoURL     string
	IssueNumber int
	Title       string
	Body        string
	Severity    triage.Severity
}

// AgentStatus is one status observation from the external agent.
type AgentStatus struct {
	Status  string
	URL     string
	Summary string
}

// Agent port (interface to the external coding agent)
type Agent interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (TaskID, error)
	TaskStatus(ctx context.Context, id TaskID) (AgentStatus, error)
}

// Tracker port: the in-process concurrent store of live tasks, keyed by
// task id. MarkTerminal is the exactly-once gate — it returns false when the
// task is already terminal or unknown, so a stale duplicate observation can
// never produce a second notification.
type Tracker interface {
	Put(t *RemediationTask) error
	Get(id TaskID) (*RemediationTask, bool)
	MarkInProgress(id TaskID)
	MarkTerminal(id TaskID, status Status, url, summary string) (*RemediationTask, bool)
	Evict(id TaskID)
	Len() int
}

// Notifier port (interface to the comment poster)
type Notifier interface {
	PostIssueComment(ctx context.Context, repo string, issueNumber int, body string) error
	PostCommitComment(ctx context.Context, repo, sha, body string) error
}

// History port: best-effort audit mirror of task records. Optional.
type History interface {
	Save(ctx context.Context, t *RemediationTask) error
	Latest(ctx context.Context, limit int) ([]*RemediationTask, error)
}

// Archive port: object storage for raw payloads and analysis texts.
// Optional; returns the stored object URL.
type Archive interface {
	PutText(ctx context.Context, key, contentType string, data []byte) (string, error)
}
