// Package devin implements the tasks.Agent port on top of the Devin
// sessions API. A session is created with a free-text prompt and polled by
// session id; terminal statuses are exit / error / suspended.
package devin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
)

const (
	DefaultBaseURL = "https://api.devin.ai/v1"

	requestTimeout = 30 * time.Second
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// CreateTask opens a session whose prompt carries the issue context plus a
// severity-specific instruction block: small may fix and open a PR, medium
// plans only, large explains why senior review is needed.
func (c *Client) CreateTask(ctx context.Context, req domain.CreateTaskRequest) (domain.TaskID, error) {
	prompt := fmt.Sprintf("Issue Title: %s\nIssue Body:\n%s\n\n%s",
		req.Title, req.Body, instructionsFor(req.Severity, req.RepoURL, req.IssueNumber))

	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("create session: unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create session response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: response carried no session_id")
	}
	return domain.TaskID(out.SessionID), nil
}

// TaskStatus polls one session. The response carries a status string, a link
// to the session page and, once finished, a result summary.
func (c *Client) TaskStatus(ctx context.Context, id domain.TaskID) (domain.AgentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/sessions/%s", c.baseURL, id), nil)
	if err != nil {
		return domain.AgentStatus{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.AgentStatus{}, fmt.Errorf("get session %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.AgentStatus{}, fmt.Errorf("get session %s: unexpected status %d: %s", id, resp.StatusCode, readBody(resp.Body))
	}

	var out struct {
		Status string `json:"status"`
		URL    string `json:"url"`
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.AgentStatus{}, fmt.Errorf("decode session %s response: %w", id, err)
	}
	return domain.AgentStatus{Status: out.Status, URL: out.URL, Summary: out.Result}, nil
}

func instructionsFor(severity triage.Severity, repoURL string, issueNumber int) string {
	switch severity {
	case triage.SeveritySmall:
		return fmt.Sprintf(
			"Resolve GitHub Issue #%d in the repo %s.\n"+
				"- Create branch devin/issue-%d\n"+
				"- Implement the fix\n"+
				"- Run tests\n"+
				"- Open a PR referencing the issue\n",
			issueNumber, repoURL, issueNumber)
	case triage.SeverityMedium:
		return fmt.Sprintf(
			"Analyze GitHub Issue #%d in the repo %s.\n"+
				"Provide a detailed remediation plan.\n"+
				"Do NOT implement the fix — only plan it.\n",
			issueNumber, repoURL)
	default: // large
		return fmt.Sprintf(
			"Analyze GitHub Issue #%d in the repo %s.\n"+
				"Explain why this requires senior engineer review.\n"+
				"Do NOT implement any changes.\n",
			issueNumber, repoURL)
	}
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
