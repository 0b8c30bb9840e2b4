package triage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apptasks "github.com/bryanwahyu/automaton-triage/internal/application/tasks"
	domaintasks "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	domain "github.com/bryanwahyu/automaton-triage/internal/domain/triage"
	"github.com/bryanwahyu/automaton-triage/internal/middleware"
)

// Result is the synchronous acknowledgement returned to the webhook caller.
type Result struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
	Severity string `json:"severity,omitempty"`
	Source   string `json:"error_source,omitempty"`
	Name     string `json:"error_name,omitempty"`
}

const (
	StatusAccepted = "accepted"
	StatusIgnored  = "ignored"
)

// Service is the entry point wiring an inbound webhook event to the
// extractor and classifier, then handing the report to the task lifecycle.
// Process returns as soon as submission is acknowledged; it never waits for
// the background poller.
type Service struct {
	Lifecycle *apptasks.Service
	Jobs      domain.JobFailureFetcher
	Archive   domaintasks.Archive
	Logger    *zap.Logger
}

func NewService(lifecycle *apptasks.Service, jobs domain.JobFailureFetcher, archive domaintasks.Archive, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Lifecycle: lifecycle, Jobs: jobs, Archive: archive, Logger: logger}
}

func (s *Service) Process(ctx context.Context, event string, payload []byte) (Result, error) {
	middleware.IncrementEvents()

	if !domain.SupportedEvent(event) {
		return s.ignored(fmt.Sprintf("unsupported event: %s", event)), nil
	}

	report, err := domain.Extract(ctx, event, payload, s.Jobs)
	if err != nil {
		s.Logger.Warn("malformed event payload",
			zap.String("event", event),
			zap.Error(err),
		)
		return s.ignored("malformed payload"), nil
	}
	if report == nil {
		return s.ignored("no actionable error found"), nil
	}

	if err := middleware.ValidateRepoFullName(report.Repo); err != nil {
		s.Logger.Warn("rejecting report with invalid repository name",
			zap.String("repo", report.Repo),
			zap.Error(err),
		)
		return s.ignored("invalid repository name"), nil
	}
	if report.CommitSHA != "" {
		if err := middleware.ValidateCommitSHA(report.CommitSHA); err != nil {
			s.Logger.Warn("rejecting report with invalid commit sha",
				zap.String("sha", report.CommitSHA),
				zap.Error(err),
			)
			return s.ignored("invalid commit sha"), nil
		}
	}

	// A report with no response target is undeliverable; drop it with a
	// trace rather than dispatch work whose outcome nobody would see.
	if !report.Deliverable() {
		s.Logger.Warn("undeliverable report dropped",
			zap.String("source", string(report.Source)),
			zap.String("name", report.Name),
			zap.String("repo", report.Repo),
		)
		return s.ignored("no response target (issue number or commit sha)"), nil
	}

	severity := domain.Classify(report.Name, report.ErrorMessage)
	s.Logger.Info("error detected",
		zap.String("source", string(report.Source)),
		zap.String("name", report.Name),
		zap.String("repo", report.Repo),
		zap.String("severity", string(severity)),
	)

	s.archivePayload(ctx, event, payload)

	taskID, err := s.Lifecycle.Submit(ctx, report, severity)
	if err != nil {
		return Result{}, fmt.Errorf("submit remediation task: %w", err)
	}

	return Result{
		Status:   StatusAccepted,
		TaskID:   string(taskID),
		Severity: string(severity),
		Source:   string(report.Source),
		Name:     report.Name,
	}, nil
}

func (s *Service) ignored(reason string) Result {
	middleware.IncrementEventsIgnored()
	return Result{Status: StatusIgnored, Reason: reason}
}

func (s *Service) archivePayload(ctx context.Context, event string, payload []byte) {
	if s.Archive == nil {
		return
	}
	key := fmt.Sprintf("events/%s/%s.json", event, uuid.New().String())
	if _, err := s.Archive.PutText(ctx, key, "application/json", payload); err != nil {
		s.Logger.Warn("failed to archive event payload", zap.String("key", key), zap.Error(err))
	}
}
