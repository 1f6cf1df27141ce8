package notify

import (
	"context"
	"log/slog"

	"comment_notifier/internal/domain"
)

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n domain.Notification) error {
	s.logger.Info("notification",
		"to", n.To,
		"subject", n.Subject,
		"comment_id", n.Record.ID,
		"body", n.Body,
	)
	return nil
}
