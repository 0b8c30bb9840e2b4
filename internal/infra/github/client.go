// Package github implements the comment-posting and workflow-detail ports
// against the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

type Client struct {
	gh *github.Client
}

func NewClient(token string) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{gh: gh}
}

// NewClientFromGitHub wraps a preconfigured go-github client. Used by tests
// to point at a local server.
func NewClientFromGitHub(gh *github.Client) *Client {
	return &Client{gh: gh}
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name: %q", repo)
	}
	return parts[0], parts[1], nil
}

// PostIssueComment creates a comment on an issue or pull request.
func (c *Client) PostIssueComment(ctx context.Context, repo string, issueNumber int, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, _, err = c.gh.Issues.CreateComment(ctx, owner, name, issueNumber,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("post issue comment %s#%d: %w", repo, issueNumber, err)
	}
	return nil
}

// PostCommitComment creates a comment on a specific commit.
func (c *Client) PostCommitComment(ctx context.Context, repo, sha, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, _, err = c.gh.Repositories.CreateComment(ctx, owner, name, sha,
		&github.RepositoryComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("post commit comment %s@%s: %w", repo, sha, err)
	}
	return nil
}

// WorkflowFailureDetails lists the failed jobs and steps of a workflow run,
// one line per job and one indented line per failed step.
func (c *Client) WorkflowFailureDetails(ctx context.Context, repo string, runID int64) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	jobs, _, err := c.gh.Actions.ListWorkflowJobs(ctx, owner, name, runID,
		&github.ListWorkflowJobsOptions{Filter: "latest"})
	if err != nil {
		return "", fmt.Errorf("list workflow jobs %s run %d: %w", repo, runID, err)
	}

	var lines []string
	for _, job := range jobs.Jobs {
		if job.GetConclusion() != "failure" {
			continue
		}
		lines = append(lines, "Job: "+job.GetName())
		for _, step := range job.Steps {
			if step.GetConclusion() == "failure" {
				lines = append(lines, "  Failed step: "+step.GetName())
			}
		}
	}

	if len(lines) == 0 {
		return "(no detailed failure info found)", nil
	}
	return strings.Join(lines, "\n"), nil
}
