package httpserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apptasks "github.com/bryanwahyu/automaton-triage/internal/application/tasks"
	apptriage "github.com/bryanwahyu/automaton-triage/internal/application/triage"
	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/infra/store/memory"
)

type scriptedAgent struct {
	mu      sync.Mutex
	created int
	status  string
	summary string
}

func (a *scriptedAgent) CreateTask(ctx context.Context, req domain.CreateTaskRequest) (domain.TaskID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created++
	return "sess-e2e", nil
}

func (a *scriptedAgent) TaskStatus(ctx context.Context, id domain.TaskID) (domain.AgentStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.AgentStatus{Status: a.status, Summary: a.summary}, nil
}

func (a *scriptedAgent) createdCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created
}

type recordingNotifier struct {
	mu             sync.Mutex
	commitComments map[string]string // sha -> body
}

func (n *recordingNotifier) PostIssueComment(ctx context.Context, repo string, issueNumber int, body string) error {
	return nil
}

func (n *recordingNotifier) PostCommitComment(ctx context.Context, repo, sha, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.commitComments == nil {
		n.commitComments = map[string]string{}
	}
	n.commitComments[sha] = body
	return nil
}

func (n *recordingNotifier) commitComment(sha string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	body, ok := n.commitComments[sha]
	return body, ok
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const headSHA = "0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f"

var checkRunBody = []byte(`{
	"check_run": {
		"name": "build",
		"conclusion": "failure",
		"head_sha": "` + headSHA + `",
		"output": {"summary": "Build failed"}
	},
	"repository": {"full_name": "acme/widgets"}
}`)

func newTestStack(t *testing.T, secret []byte) (http.Handler, *scriptedAgent, *recordingNotifier) {
	t.Helper()
	agent := &scriptedAgent{status: "exit", summary: "opened PR #12"}
	notifier := &recordingNotifier{}

	lifecycle := apptasks.NewService(apptasks.Deps{
		Agent:        agent,
		Tracker:      memory.NewTracker(),
		Notifier:     notifier,
		PollInterval: 5 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lifecycle.Shutdown(ctx)
	})

	triageSvc := apptriage.NewService(lifecycle, nil, nil, nil)
	return NewRouter(triageSvc, nil, secret, nil, nil), agent, notifier
}

func postWebhook(handler http.Handler, event string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestWebhookEndToEnd(t *testing.T) {
	secret := []byte("s3cret")
	handler, agent, notifier := newTestStack(t, secret)

	w := postWebhook(handler, "check_run", checkRunBody, map[string]string{
		"X-Hub-Signature-256": sign(secret, checkRunBody),
		"X-GitHub-Delivery":   "delivery-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res apptriage.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, apptriage.StatusAccepted, res.Status)
	assert.Equal(t, "sess-e2e", res.TaskID)
	assert.Equal(t, "medium", res.Severity)
	assert.Equal(t, 1, agent.createdCount())

	// the response did not wait for the poller; the comment lands later
	assert.Eventually(t, func() bool {
		_, ok := notifier.commitComment(headSHA)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	body, _ := notifier.commitComment(headSHA)
	assert.Contains(t, body, "Completed")
	assert.Contains(t, body, "opened PR #12")
}

func TestWebhookTamperedSignatureRejected(t *testing.T) {
	secret := []byte("s3cret")
	handler, agent, _ := newTestStack(t, secret)

	sig := sign(secret, checkRunBody)
	tampered := bytes.Replace(checkRunBody, []byte("Build failed"), []byte("Build passed"), 1)

	w := postWebhook(handler, "check_run", tampered, map[string]string{
		"X-Hub-Signature-256": sig,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, agent.createdCount())
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	handler, agent, _ := newTestStack(t, []byte("s3cret"))

	w := postWebhook(handler, "check_run", checkRunBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, agent.createdCount())
}

func TestWebhookNoSecretSkipsVerification(t *testing.T) {
	handler, agent, _ := newTestStack(t, nil)

	w := postWebhook(handler, "check_run", checkRunBody, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, agent.createdCount())
}

func TestWebhookDuplicateDeliverySuppressed(t *testing.T) {
	secret := []byte("s3cret")
	handler, agent, _ := newTestStack(t, secret)

	headers := map[string]string{
		"X-Hub-Signature-256": sign(secret, checkRunBody),
		"X-GitHub-Delivery":   "delivery-dup",
	}

	w1 := postWebhook(handler, "check_run", checkRunBody, headers)
	require.Equal(t, http.StatusOK, w1.Code)

	w2 := postWebhook(handler, "check_run", checkRunBody, headers)
	require.Equal(t, http.StatusOK, w2.Code)

	var res apptriage.Result
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &res))
	assert.Equal(t, apptriage.StatusIgnored, res.Status)
	assert.Contains(t, res.Reason, "duplicate delivery")
	assert.Equal(t, 1, agent.createdCount())
}

func TestWebhookIgnoredEvent(t *testing.T) {
	handler, agent, _ := newTestStack(t, nil)

	w := postWebhook(handler, "star", []byte(`{}`), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res apptriage.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, apptriage.StatusIgnored, res.Status)
	assert.Zero(t, agent.createdCount())
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _, _ := newTestStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Contains(t, m, "tasks_submitted")
	assert.Contains(t, m, "events_total")
}

func TestLatestTasksWithoutHistory(t *testing.T) {
	handler, _, _ := newTestStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/tasks/latest", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
