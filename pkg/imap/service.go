// Package imap pulls unseen support mail from an IMAP mailbox.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/mailparse"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

const dialTimeout = 30 * time.Second

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
	Mailbox  string
	// MaxMessages caps one fetch; zero means no cap
	MaxMessages int
}

// Service opens a short-lived IMAP session per fetch
type Service struct {
	config Config
	logger *zap.Logger
}

func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("IMAP host and user are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{config: cfg, logger: logger}, nil
}

// FetchUnseen returns every unseen message in the mailbox. Fetching the
// body without PEEK flags the messages as seen on the server.
func (s *Service) FetchUnseen(ctx context.Context) ([]emaildomain.InboundMessage, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			s.logger.Debug("imap logout failed", zap.Error(err))
		}
	}()

	if _, err := c.Select(s.config.Mailbox, false); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.config.Mailbox, err)
	}

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return []emaildomain.InboundMessage{}, nil
	}
	if s.config.MaxMessages > 0 && len(uids) > s.config.MaxMessages {
		uids = uids[:s.config.MaxMessages]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)
	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchUid, section.FetchItem()}

	messages := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	result := make([]emaildomain.InboundMessage, 0, len(uids))
	for msg := range messages {
		parsed, err := parseMessage(msg, section)
		if err != nil {
			s.logger.Warn("failed to parse message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		if parsed != nil {
			result = append(result, *parsed)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	s.logger.Info("fetched unseen messages", zap.String("mailbox", s.config.Mailbox), zap.Int("count", len(result)))
	return result, nil
}

func (s *Service) connect() (*client.Client, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	var c *client.Client
	var err error
	if s.config.TLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: s.config.Host})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = dialTimeout

	if err := c.Login(s.config.User, s.config.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// parseMessage prefers the parsed body headers and fills gaps from the envelope
func parseMessage(msg *goimap.Message, section *goimap.BodySectionName) (*emaildomain.InboundMessage, error) {
	if msg == nil {
		return nil, nil
	}

	var parsed *emaildomain.InboundMessage
	if r := msg.GetBody(section); r != nil {
		var err error
		if parsed, err = mailparse.Parse(r); err != nil {
			return nil, err
		}
	} else {
		parsed = &emaildomain.InboundMessage{}
	}

	if env := msg.Envelope; env != nil {
		if parsed.MessageID == "" {
			parsed.MessageID = env.MessageId
		}
		if parsed.Subject == "" {
			parsed.Subject = env.Subject
		}
		if parsed.From == "" && len(env.From) > 0 {
			parsed.From = env.From[0].Address()
		}
		if len(parsed.To) == 0 {
			for _, a := range env.To {
				parsed.To = append(parsed.To, a.Address())
			}
		}
		if parsed.ReceivedAt.IsZero() && !env.Date.IsZero() {
			parsed.ReceivedAt = env.Date
		}
	}
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = time.Now()
	}
	return parsed, nil
}
