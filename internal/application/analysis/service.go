package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-triage/internal/domain/ai"
	"github.com/bryanwahyu/automaton-triage/internal/domain/triage"
	"github.com/bryanwahyu/automaton-triage/internal/infra/ai/prompt"
)

// Service produces remediation text for an ErrorReport. The primary path
// asks the LLM backend; any backend problem (not configured, call failed,
// empty answer) degrades to the deterministic rule-based fallback. Analyze
// never fails and never returns an empty string.
type Service struct {
	client ai.Client
	logger *zap.Logger
}

func NewService(client ai.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

func (s *Service) Analyze(ctx context.Context, report *triage.ErrorReport) string {
	if s.client == nil {
		s.logger.Warn("no AI backend configured, using fallback analysis",
			zap.String("source", string(report.Source)),
			zap.String("name", report.Name),
		)
		return Fallback(report)
	}

	out, err := s.client.Complete(ctx, prompt.SystemPrompt(), prompt.UserPrompt(report))
	if err != nil {
		s.logger.Error("ai analysis failed, using fallback",
			zap.String("name", report.Name),
			zap.Error(err),
		)
		return Fallback(report)
	}
	if strings.TrimSpace(out) == "" {
		s.logger.Error("ai analysis returned empty text, using fallback",
			zap.String("name", report.Name),
		)
		return Fallback(report)
	}
	return out
}
