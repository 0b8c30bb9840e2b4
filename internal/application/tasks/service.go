package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-triage/internal/application"
	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
	"github.com/bryanwahyu/automaton-triage/internal/middleware"
)

const (
	defaultPollInterval = 20 * time.Second
	pollRequestTimeout  = 30 * time.Second
)

// Analyzer produces remediation text for a report. Used when the agent's
// terminal result carries no summary of its own.
type Analyzer interface {
	Analyze(ctx context.Context, report *triage.ErrorReport) string
}

// Deps for the lifecycle service. Agent, Tracker and Notifier are required;
// the rest is optional.
type Deps struct {
	Agent        domain.Agent
	Tracker      domain.Tracker
	Notifier     domain.Notifier
	History      domain.History
	Archive      domain.Archive
	Analyzer     Analyzer
	Clock        application.Clock
	Logger       *zap.Logger
	PollInterval time.Duration
}

// Service owns the lifecycle of dispatched remediation tasks: submission,
// one background poller per task id, terminal-state detection and the
// exactly-once result notification.
type Service struct {
	agent        domain.Agent
	tracker      domain.Tracker
	notifier     domain.Notifier
	history      domain.History
	archive      domain.Archive
	analyzer     Analyzer
	clock        application.Clock
	logger       *zap.Logger
	pollInterval time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = defaultPollInterval
	}
	return &Service{
		agent:        d.Agent,
		tracker:      d.Tracker,
		notifier:     d.Notifier,
		history:      d.History,
		archive:      d.Archive,
		analyzer:     d.Analyzer,
		clock:        d.Clock,
		logger:       d.Logger,
		pollInterval: d.PollInterval,
		done:         make(chan struct{}),
	}
}

// Submit dispatches a report to the external agent and starts the poller for
// the returned task id. Propagates an error only when the submission call
// itself fails; no poller is started in that case.
func (s *Service) Submit(ctx context.Context, report *triage.ErrorReport, severity triage.Severity) (domain.TaskID, error) {
	body := report.ErrorMessage
	if report.Details != "" {
		body += "\n\n" + report.Details
	}

	id, err := s.agent.CreateTask(ctx, domain.CreateTaskRequest{
		RepoURL:     "https://github.com/" + report.Repo,
		IssueNumber: report.IssueNumber,
		Title:       report.Name,
		Body:        body,
		Severity:    severity,
	})
	if err != nil {
		return "", fmt.Errorf("create agent task: %w", err)
	}

	now := s.clock.Now()
	task := &domain.RemediationTask{
		ID:          id,
		Repo:        report.Repo,
		IssueNumber: report.IssueNumber,
		CommitSHA:   report.CommitSHA,
		Severity:    severity,
		Status:      domain.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tracker.Put(task); err != nil {
		// A duplicate id from the agent would mean a second poller for the
		// same key; refuse rather than corrupt the single-writer discipline.
		return "", fmt.Errorf("track task %s: %w", id, err)
	}
	s.saveHistory(task)
	middleware.IncrementTasksSubmitted()

	s.logger.Info("remediation task submitted",
		zap.String("task_id", string(id)),
		zap.String("repo", report.Repo),
		zap.String("target", task.Target()),
		zap.String("severity", string(severity)),
	)

	s.wg.Add(1)
	go s.poll(id, report)

	return id, nil
}

// poll runs until a terminal status is observed or the service shuts down.
// A failed status query is logged and retried on the same schedule; it is
// never treated as evidence of task failure.
func (s *Service) poll(id domain.TaskID, report *triage.ErrorReport) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.logger.Info("poller stopped by shutdown", zap.String("task_id", string(id)))
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), pollRequestTimeout)
		st, err := s.agent.TaskStatus(ctx, id)
		cancel()
		if err != nil {
			s.logger.Warn("task status poll failed, will retry",
				zap.String("task_id", string(id)),
				zap.Error(err),
			)
			continue
		}

		status := domain.StatusFromAgent(st.Status)
		if !status.Terminal() {
			s.tracker.MarkInProgress(id)
			continue
		}

		// Exactly-once gate: the transition and the notification are one
		// logical step. MarkTerminal refuses repeated terminal observations.
		task, transitioned := s.tracker.MarkTerminal(id, status, st.URL, st.Summary)
		if !transitioned {
			s.logger.Warn("stale terminal observation ignored", zap.String("task_id", string(id)))
			return
		}
		task.UpdatedAt = s.clock.Now()

		s.logger.Info("task reached terminal status",
			zap.String("task_id", string(id)),
			zap.String("status", string(status)),
			zap.String("agent_status", st.Status),
		)
		switch status {
		case domain.StatusCompleted:
			middleware.IncrementTasksCompleted()
		case domain.StatusFailed:
			middleware.IncrementTasksFailed()
		case domain.StatusSuspended:
			middleware.IncrementTasksSuspended()
		}

		s.notify(task, report)
		s.saveHistory(task)
		s.tracker.Evict(id)
		return
	}
}

// notify posts the task outcome to the originating thread: the issue when an
// issue number exists, otherwise the commit. A task with neither target is
// dropped with a logged warning.
func (s *Service) notify(task *domain.RemediationTask, report *triage.ErrorReport) {
	body := s.buildNotification(task, report)

	ctx, cancel := context.WithTimeout(context.Background(), pollRequestTimeout)
	defer cancel()

	var err error
	switch {
	case task.IssueNumber > 0:
		err = s.notifier.PostIssueComment(ctx, task.Repo, task.IssueNumber, body)
	case task.CommitSHA != "":
		err = s.notifier.PostCommitComment(ctx, task.Repo, task.CommitSHA, body)
	default:
		s.logger.Warn("no issue number or commit sha, dropping notification",
			zap.String("task_id", string(task.ID)),
		)
		middleware.IncrementNotificationsDropped()
		return
	}

	if err != nil {
		s.logger.Error("failed to post notification",
			zap.String("task_id", string(task.ID)),
			zap.String("target", task.Target()),
			zap.Error(err),
		)
		middleware.IncrementNotificationsDropped()
		return
	}
	middleware.IncrementNotificationsPosted()
	s.logger.Info("notification posted",
		zap.String("task_id", string(task.ID)),
		zap.String("target", task.Target()),
	)
}

func (s *Service) buildNotification(task *domain.RemediationTask, report *triage.ErrorReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Remediation Task %s\n\n", task.Status.Label())
	fmt.Fprintf(&b, "Task `%s` (severity: %s) finished with status **%s**.\n\n",
		task.ID, task.Severity, task.Status.Label())
	if task.URL != "" {
		fmt.Fprintf(&b, "Session: %s\n\n", task.URL)
	}

	switch {
	case strings.TrimSpace(task.Summary) != "":
		b.WriteString(task.Summary)
	case s.analyzer != nil && report != nil:
		ctx, cancel := context.WithTimeout(context.Background(), pollRequestTimeout)
		analysis := s.analyzer.Analyze(ctx, report)
		cancel()
		b.WriteString(analysis)
		s.archiveAnalysis(task.ID, analysis)
	default:
		b.WriteString("See the task page for details.")
	}
	return b.String()
}

func (s *Service) archiveAnalysis(id domain.TaskID, analysis string) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pollRequestTimeout)
	defer cancel()
	key := fmt.Sprintf("tasks/%s.md", id)
	if _, err := s.archive.PutText(ctx, key, "text/markdown", []byte(analysis)); err != nil {
		s.logger.Warn("failed to archive analysis", zap.String("task_id", string(id)), zap.Error(err))
	}
}

func (s *Service) saveHistory(task *domain.RemediationTask) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Save(ctx, task); err != nil {
		s.logger.Warn("failed to save task history",
			zap.String("task_id", string(task.ID)),
			zap.Error(err),
		)
	}
}

// InFlight reports how many tasks are currently tracked.
func (s *Service) InFlight() int { return s.tracker.Len() }

// Shutdown signals every poller to stop and waits for them, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
