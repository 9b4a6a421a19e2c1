package mailx

import (
	"context"
	"log/slog"

	"github.com/jewelbox/backoffice/pkg/slogx"
)

// LogSender writes messages to the request logger instead of delivering
// them. Intended for local development only: bodies may contain secrets.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("mail not delivered (log mode)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
