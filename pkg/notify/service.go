package notify

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// RunCompletedInput contains data for a run completion notification.
type RunCompletedInput struct {
	Goal           string
	Steps          int
	WaterdropsUsed float64
	AuditStatus    string // ok, partial, fail; empty when no audit ran
	AuditSummary   string
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "notify-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "notify-service"),
	}
}

// NotifyRunCompleted sends a run completion notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyRunCompleted(ctx context.Context, input RunCompletedInput) {
	if s == nil {
		return
	}

	blocks := BuildRunCompletedMessage(input)
	if err := s.client.PostMessage(ctx, blocks, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack run notification",
			"steps", input.Steps,
			"error", err)
	}
}
