package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

type ResendDispatcher struct {
	From   string
	client *resend.Client
}

func NewResendDispatcher(apiKey string, from string) *ResendDispatcher {
	return &ResendDispatcher{
		From:   from,
		client: resend.NewClient(apiKey),
	}
}

func (d *ResendDispatcher) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("empty recipient")
	}
	params := &resend.SendEmailRequest{
		From:    d.From,
		To:      []string{to},
		Subject: subject,
		Text:    textBody,
		Html:    htmlBody,
	}
	if _, err := d.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend email: %w", err)
	}
	return nil
}
