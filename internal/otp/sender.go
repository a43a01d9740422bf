package otp

import (
	"context"
	"log/slog"
)

// Sender delivers a generated code to an email address. Implementations
// report failure but offer no delivery confirmation beyond that.
type Sender interface {
	SendCode(ctx context.Context, email, code, displayName string) error
}

// LogSender writes codes to the log instead of delivering them. Development
// only; never enable where real users sign in.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(ctx context.Context, email, code, displayName string) error {
	s.logger.InfoContext(ctx, "otp code issued (log sender)",
		"email", email,
		"code", code,
		"display_name", displayName,
	)
	return nil
}
