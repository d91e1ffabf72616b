package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	BackendConsole = "console"
	BackendSMTP    = "smtp"
	BackendResend  = "resend"
)

// Dispatcher sends one email with a plain-text body and an HTML alternative.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

type Config struct {
	Backend      string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ResendAPIKey string
}

// New picks the dispatcher named by cfg.Backend.
func New(cfg Config, logger logrus.FieldLogger) (Dispatcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendConsole:
		return NewConsoleDispatcher(cfg.From, logger), nil
	case BackendSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp backend requires SMTP_HOST")
		}
		return NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
	case BackendResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend backend requires RESEND_API_KEY")
		}
		return NewResendDispatcher(cfg.ResendAPIKey, cfg.From), nil
	default:
		return nil, fmt.Errorf("unknown email backend %q", cfg.Backend)
	}
}
