package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// JobFailureFetcher port: fetches per-job/per-step failure names for a
// workflow run. Implemented by the GitHub infra client.
type JobFailureFetcher interface {
	WorkflowFailureDetails(ctx context.Context, repo string, runID int64) (string, error)
}

// Comment bodies that match any of these signal an error worth triaging.
// Compiled once at package initialization.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error[:\s](.+)`),
	regexp.MustCompile(`(?i)exception[:\s](.+)`),
	regexp.MustCompile(`(?i)traceback[\s\S]+`),
	regexp.MustCompile(`(?i)failed[:\s](.+)`),
	regexp.MustCompile(`(?i)panic[:\s](.+)`),
	regexp.MustCompile(`(?i)segfault`),
	regexp.MustCompile(`(?i)stack\s*trace`),
}

// SupportedEvent reports whether the webhook event type has an extractor.
func SupportedEvent(event string) bool {
	switch Source(event) {
	case SourceCheckRun, SourceWorkflowRun, SourceIssueComment:
		return true
	}
	return false
}

// Payload shapes. Only the fields the extractor reads are declared.

type checkRunPayload struct {
	CheckRun struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HeadSHA    string `json:"head_sha"`
		HTMLURL    string `json:"html_url"`
		Output     struct {
			Summary string `json:"summary"`
			Text    string `json:"text"`
		} `json:"output"`
	} `json:"check_run"`
	Repository repoRef `json:"repository"`
}

type workflowRunPayload struct {
	WorkflowRun struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HeadSHA    string `json:"head_sha"`
		HTMLURL    string `json:"html_url"`
	} `json:"workflow_run"`
	Repository repoRef `json:"repository"`
}

type issueCommentPayload struct {
	Comment struct {
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
	} `json:"comment"`
	Issue struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	} `json:"issue"`
	Repository repoRef `json:"repository"`
}

type repoRef struct {
	FullName string `json:"full_name"`
}

// Extract turns a raw inbound event into a normalized ErrorReport.
// A nil report with a nil error means the event is not actionable
// (unsupported type, passing conclusion, or no error signal in the body).
func Extract(ctx context.Context, event string, payload []byte, jobs JobFailureFetcher) (*ErrorReport, error) {
	switch Source(event) {
	case SourceCheckRun:
		return extractCheckRun(payload)
	case SourceWorkflowRun:
		return extractWorkflowRun(ctx, payload, jobs)
	case SourceIssueComment:
		return extractIssueComment(payload)
	default:
		return nil, nil
	}
}

func extractCheckRun(payload []byte) (*ErrorReport, error) {
	var p checkRunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode check_run payload: %w", err)
	}
	if p.CheckRun.Conclusion != "failure" {
		return nil, nil
	}

	name := p.CheckRun.Name
	if name == "" {
		name = "Unknown Check"
	}
	msg := p.CheckRun.Output.Summary
	if msg == "" {
		msg = "No summary available"
	}

	return &ErrorReport{
		Source:       SourceCheckRun,
		Name:         name,
		ErrorMessage: msg,
		Details:      p.CheckRun.Output.Text,
		Repo:         p.Repository.FullName,
		CommitSHA:    p.CheckRun.HeadSHA,
		URL:          p.CheckRun.HTMLURL,
	}, nil
}

func extractWorkflowRun(ctx context.Context, payload []byte, jobs JobFailureFetcher) (*ErrorReport, error) {
	var p workflowRunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode workflow_run payload: %w", err)
	}
	if p.WorkflowRun.Conclusion != "failure" {
		return nil, nil
	}

	name := p.WorkflowRun.Name
	if name == "" {
		name = "Unknown Workflow"
	}

	// Fetching job details is best-effort: a fetch failure becomes a
	// diagnostic string, it never discards the event.
	details := "(workflow logs unavailable)"
	if jobs != nil && p.WorkflowRun.ID != 0 {
		d, err := jobs.WorkflowFailureDetails(ctx, p.Repository.FullName, p.WorkflowRun.ID)
		if err != nil {
			details = fmt.Sprintf("(failed to fetch workflow jobs: %v)", err)
		} else {
			details = d
		}
	}

	return &ErrorReport{
		Source:       SourceWorkflowRun,
		Name:         name,
		ErrorMessage: fmt.Sprintf("Workflow %q failed", name),
		Details:      details,
		Repo:         p.Repository.FullName,
		CommitSHA:    p.WorkflowRun.HeadSHA,
		URL:          p.WorkflowRun.HTMLURL,
	}, nil
}

func extractIssueComment(payload []byte) (*ErrorReport, error) {
	var p issueCommentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode issue_comment payload: %w", err)
	}

	matched := false
	for _, re := range errorPatterns {
		if re.MatchString(p.Comment.Body) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	number := p.Issue.Number
	return &ErrorReport{
		Source:       SourceIssueComment,
		Name:         fmt.Sprintf("Issue #%d", number),
		ErrorMessage: p.Comment.Body,
		Repo:         p.Repository.FullName,
		IssueNumber:  number,
		URL:          p.Comment.HTMLURL,
	}, nil
}
