package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleDispatcher writes messages to the log instead of sending them.
// Meant for local development only: codes and links end up in the log.
type ConsoleDispatcher struct {
	From   string
	logger logrus.FieldLogger
}

func NewConsoleDispatcher(from string, logger logrus.FieldLogger) *ConsoleDispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ConsoleDispatcher{From: from, logger: logger}
}

func (d *ConsoleDispatcher) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{
		"from":    d.From,
		"to":      to,
		"subject": subject,
	}).Info(textBody)
	return nil
}
