package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const dialTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure uses implicit TLS on connect; otherwise STARTTLS is used when offered
	Secure bool
}

// SMTPDispatcher sends replies as multipart text/html messages over SMTP
type SMTPDispatcher struct {
	config SMTPConfig
	from   string
	logger *zap.Logger
}

func NewSMTPDispatcher(cfg SMTPConfig, defaultFrom string, logger *zap.Logger) *SMTPDispatcher {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPDispatcher{config: cfg, from: defaultFrom, logger: logger}
}

func (s *SMTPDispatcher) Send(ctx context.Context, msg emaildomain.OutboundMessage) (*emaildomain.DeliveryReceipt, error) {
	from, to, err := validate(msg, s.from)
	if err != nil {
		return nil, err
	}

	raw, messageID, err := buildMessage(from, to, msg.Subject, msg.Text, msg.HTML, time.Now())
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Mail(from.Address); err != nil {
		return nil, fmt.Errorf("sender rejected: %w", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return nil, fmt.Errorf("recipient rejected: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return nil, fmt.Errorf("data command failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("message finalization failed: %w", err)
	}
	if err := client.Quit(); err != nil {
		s.logger.Debug("smtp quit failed", zap.Error(err))
	}

	s.logger.Info("reply sent", zap.String("to", to.Address), zap.String("message_id", messageID))
	return &emaildomain.DeliveryReceipt{
		OK:        true,
		MessageID: "<" + messageID + ">",
		Accepted:  []string{to.Address},
		Response:  "250 message accepted",
		Provider:  ProviderSMTP,
	}, nil
}

// Verify connects and authenticates without sending anything
func (s *SMTPDispatcher) Verify(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

func (s *SMTPDispatcher) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	tlsConfig := &tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}
	if s.config.Secure {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP client creation failed: %w", err)
	}

	if !s.config.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls failed: %w", err)
			}
		} else if s.config.Username != "" {
			client.Close()
			return nil, fmt.Errorf("SMTP auth requires TLS")
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}
	return client, nil
}

// buildMessage renders a multipart/alternative message and returns it with its Message-ID
func buildMessage(from, to *mail.Address, subject, text, html string, date time.Time) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", err
	}
	messageID, err := h.MessageID()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, "", err
	}
	if err := writePart(tw, "text/plain", text); err != nil {
		return nil, "", err
	}
	if html != "" {
		if err := writePart(tw, "text/html", html); err != nil {
			return nil, "", err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), messageID, nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}
