package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apptasks "github.com/bryanwahyu/automaton-triage/internal/application/tasks"
	domaintasks "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/infra/store/memory"
)

type stubAgent struct {
	id        domaintasks.TaskID
	createErr error
	created   []domaintasks.CreateTaskRequest
}

func (s *stubAgent) CreateTask(ctx context.Context, req domaintasks.CreateTaskRequest) (domaintasks.TaskID, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, req)
	return s.id, nil
}

func (s *stubAgent) TaskStatus(ctx context.Context, id domaintasks.TaskID) (domaintasks.AgentStatus, error) {
	// keep the poller looping; these tests only exercise the synchronous path
	return domaintasks.AgentStatus{Status: "running"}, nil
}

type noopNotifier struct{}

func (noopNotifier) PostIssueComment(ctx context.Context, repo string, n int, body string) error {
	return nil
}
func (noopNotifier) PostCommitComment(ctx context.Context, repo, sha, body string) error {
	return nil
}

func newOrchestrator(t *testing.T, agent *stubAgent) *Service {
	t.Helper()
	lifecycle := apptasks.NewService(apptasks.Deps{
		Agent:        agent,
		Tracker:      memory.NewTracker(),
		Notifier:     noopNotifier{},
		PollInterval: time.Hour, // pollers stay idle during the test
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lifecycle.Shutdown(ctx)
	})
	return NewService(lifecycle, nil, nil, nil)
}

const actionableCheckRun = `{
	"check_run": {
		"name": "build",
		"conclusion": "failure",
		"head_sha": "0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f",
		"output": {"summary": "Build failed"}
	},
	"repository": {"full_name": "acme/widgets"}
}`

func TestProcessAcceptsActionableEvent(t *testing.T) {
	agent := &stubAgent{id: "sess-42"}
	svc := newOrchestrator(t, agent)

	start := time.Now()
	res, err := svc.Process(context.Background(), "check_run", []byte(actionableCheckRun))
	require.NoError(t, err)

	// acknowledgement is synchronous, never gated on the poll interval
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, "sess-42", res.TaskID)
	assert.Equal(t, "medium", res.Severity)
	assert.Equal(t, "check_run", res.Source)
	require.Len(t, agent.created, 1)
	assert.Equal(t, "https://github.com/acme/widgets", agent.created[0].RepoURL)
}

func TestProcessIgnoresUnsupportedEvent(t *testing.T) {
	agent := &stubAgent{id: "sess-1"}
	svc := newOrchestrator(t, agent)

	res, err := svc.Process(context.Background(), "push", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Contains(t, res.Reason, "unsupported event")
	assert.Empty(t, agent.created)
}

func TestProcessIgnoresNonActionableEvent(t *testing.T) {
	agent := &stubAgent{id: "sess-1"}
	svc := newOrchestrator(t, agent)

	payload := `{
		"comment": {"body": "just a regular comment"},
		"issue": {"number": 5},
		"repository": {"full_name": "acme/widgets"}
	}`
	res, err := svc.Process(context.Background(), "issue_comment", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Equal(t, "no actionable error found", res.Reason)
	assert.Empty(t, agent.created)
}

func TestProcessIgnoresMalformedPayload(t *testing.T) {
	svc := newOrchestrator(t, &stubAgent{id: "sess-1"})
	res, err := svc.Process(context.Background(), "check_run", []byte(`{broken`))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Equal(t, "malformed payload", res.Reason)
}

func TestProcessRejectsInvalidRepoName(t *testing.T) {
	svc := newOrchestrator(t, &stubAgent{id: "sess-1"})
	payload := `{
		"check_run": {"name": "build", "conclusion": "failure", "head_sha": "abcdef1", "output": {"summary": "Build failed"}},
		"repository": {"full_name": "not a repo name"}
	}`
	res, err := svc.Process(context.Background(), "check_run", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Equal(t, "invalid repository name", res.Reason)
}

func TestProcessDropsUndeliverableReport(t *testing.T) {
	agent := &stubAgent{id: "sess-1"}
	svc := newOrchestrator(t, agent)

	// failure check run with no head sha: nowhere to post the result
	payload := `{
		"check_run": {"name": "build", "conclusion": "failure", "output": {"summary": "Build failed"}},
		"repository": {"full_name": "acme/widgets"}
	}`
	res, err := svc.Process(context.Background(), "check_run", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Contains(t, res.Reason, "no response target")
	assert.Empty(t, agent.created)
}

func TestProcessPropagatesSubmissionFailure(t *testing.T) {
	svc := newOrchestrator(t, &stubAgent{createErr: errors.New("agent down")})
	_, err := svc.Process(context.Background(), "check_run", []byte(actionableCheckRun))
	assert.Error(t, err)
}
