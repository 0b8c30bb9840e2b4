package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	raw := gh.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	raw.BaseURL = base
	return NewClientFromGitHub(raw), srv
}

func TestPostIssueComment(t *testing.T) {
	var gotBody string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/issues/9/comments", r.URL.Path)
		var payload struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotBody = payload.Body
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 1})
	}))

	err := c.PostIssueComment(context.Background(), "acme/widgets", 9, "analysis text")
	require.NoError(t, err)
	assert.Equal(t, "analysis text", gotBody)
}

func TestPostCommitComment(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/commits/abc123/comments", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 1})
	}))

	err := c.PostCommitComment(context.Background(), "acme/widgets", "abc123", "done")
	assert.NoError(t, err)
}

func TestInvalidRepoName(t *testing.T) {
	c := NewClient("")
	assert.Error(t, c.PostIssueComment(context.Background(), "no-slash", 1, "x"))
	assert.Error(t, c.PostCommitComment(context.Background(), "/leading", "sha", "x"))
	_, err := c.WorkflowFailureDetails(context.Background(), "trailing/", 1)
	assert.Error(t, err)
}

func TestWorkflowFailureDetails(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/actions/runs/77/jobs", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 2,
			"jobs": []map[string]any{
				{
					"name":       "lint",
					"conclusion": "success",
				},
				{
					"name":       "test",
					"conclusion": "failure",
					"steps": []map[string]any{
						{"name": "checkout", "conclusion": "success"},
						{"name": "go test", "conclusion": "failure"},
					},
				},
			},
		})
	}))

	details, err := c.WorkflowFailureDetails(context.Background(), "acme/widgets", 77)
	require.NoError(t, err)
	assert.Equal(t, "Job: test\n  Failed step: go test", details)
}

func TestWorkflowFailureDetailsEmpty(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"total_count": 0, "jobs": []map[string]any{}})
	}))

	details, err := c.WorkflowFailureDetails(context.Background(), "acme/widgets", 77)
	require.NoError(t, err)
	assert.Equal(t, "(no detailed failure info found)", details)
}
