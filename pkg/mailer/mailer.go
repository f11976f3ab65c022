// Package mailer delivers outbound support replies through SMTP, Resend or SendGrid.
package mailer

import (
	"fmt"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/config"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const (
	ProviderSMTP     = "smtp"
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
)

// New builds the dispatcher selected by MAIL_PROVIDER
func New(cfg *config.Config, logger *zap.Logger) (emaildomain.MailDispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.MailProvider {
	case "", ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required for the smtp provider")
		}
		return NewSMTPDispatcher(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Secure:   cfg.SMTPSecure,
		}, cfg.DefaultFrom, logger), nil
	case ProviderResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
		return NewResendDispatcher(cfg.ResendAPIKey, cfg.DefaultFrom, logger), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return NewSendGridDispatcher(cfg.SendGridAPIKey, cfg.DefaultFrom, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %s", cfg.MailProvider)
	}
}

// validate checks addresses and rejects header injection
func validate(msg emaildomain.OutboundMessage, defaultFrom string) (from, to *mail.Address, err error) {
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, nil, fmt.Errorf("subject contains invalid characters")
	}
	sender := msg.From
	if sender == "" {
		sender = defaultFrom
	}
	if from, err = parseAddress(sender); err != nil {
		return nil, nil, fmt.Errorf("invalid sender: %w", err)
	}
	if to, err = parseAddress(msg.To); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", emaildomain.ErrInvalidRecipient, err)
	}
	return from, to, nil
}

func parseAddress(s string) (*mail.Address, error) {
	if strings.ContainsAny(s, "\r\n,;") {
		return nil, fmt.Errorf("address contains invalid characters")
	}
	return mail.ParseAddress(s)
}
