package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

type TaskRepository struct{ db *sql.DB }

func NewTaskRepository(db *sql.DB) *TaskRepository { return &TaskRepository{db: db} }

// Save insert/update task record
func (r *TaskRepository) Save(ctx context.Context, t *domain.RemediationTask) error {
	const q = `
INSERT INTO remediation_tasks
(id, repository, issue_number, commit_sha, severity, status, url, summary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 url = EXCLUDED.url,
 summary = EXCLUDED.summary,
 updated_at = EXCLUDED.updated_at;`

	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.Repo, t.IssueNumber, t.CommitSHA,
		string(t.Severity), string(t.Status), t.URL, t.Summary,
		created, updated,
	)
	return err
}

// Latest task records, newest first
func (r *TaskRepository) Latest(ctx context.Context, limit int) ([]*domain.RemediationTask, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, repository, issue_number, commit_sha, severity, status, url, summary, created_at, updated_at
FROM remediation_tasks
ORDER BY created_at DESC LIMIT $1;`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RemediationTask
	for rows.Next() {
		var t domain.RemediationTask
		var severity, status string
		if err := rows.Scan(
			&t.ID, &t.Repo, &t.IssueNumber, &t.CommitSHA,
			&severity, &status, &t.URL, &t.Summary,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t.Severity = triage.Severity(severity)
		t.Status = domain.Status(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}
