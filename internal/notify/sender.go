package notify

import (
	"context"
	"log/slog"
)

// LogSender writes deliveries to the structured log. It is the default
// sender until a push/SMS gateway is configured; payloads are already
// anonymized upstream so logging them is safe.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	attrs := []any{
		"kind", n.Kind,
		"recipient", n.Recipient,
	}
	for k, v := range n.Payload {
		attrs = append(attrs, "payload_"+k, v)
	}
	s.logger.InfoContext(ctx, "notification delivered", attrs...)
	return nil
}
