package notify

import (
	"context"
	"log/slog"
)

// Sender delivers a rendered text to a player's contact address.
// Delivery is fire-and-forget from the engine's point of view: errors are
// logged by callers but never fed back into match state.
type Sender interface {
	Send(ctx context.Context, address string, text string) error
}

// LogSender writes outbound messages to the log instead of a chat channel.
// Used in development and as the fallback when no channel is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, address string, text string) error {
	s.logger.Info("outbound message",
		slog.String("to", address),
		slog.String("text", text),
	)
	return nil
}
