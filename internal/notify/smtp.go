package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type SMTPDispatcher struct {
	From   string
	dialer *gomail.Dialer
}

func NewSMTPDispatcher(host string, port int, user, password, from string) *SMTPDispatcher {
	if port == 0 {
		port = 587
	}
	return &SMTPDispatcher{
		From:   from,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := d.buildMessage(to, subject, textBody, htmlBody)
	if err != nil {
		return err
	}
	if err := d.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (d *SMTPDispatcher) buildMessage(to, subject, textBody, htmlBody string) (*gomail.Message, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("empty recipient")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", d.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}
	return m, nil
}
