// Package gmail reads the support mailbox through the Gmail API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/mailparse"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	user          = "me"
	unreadLabel   = "UNREAD"
	defaultQuery  = "is:unread in:inbox"
	maxListResult = 100
)

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Query        string
}

// Service is a MailSource backed by a single OAuth2-authorized mailbox
type Service struct {
	srv    *gmail.Service
	query  string
	logger *zap.Logger
}

func NewService(ctx context.Context, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gmail client id, secret and refresh token are required")
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	// An expired token forces a refresh on first use
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken, TokenType: "Bearer", Expiry: time.Now()}
	client := oauth2.NewClient(ctx, config.TokenSource(ctx, token))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return newWithService(srv, cfg.Query, logger), nil
}

func newWithService(srv *gmail.Service, query string, logger *zap.Logger) *Service {
	if query == "" {
		query = defaultQuery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{srv: srv, query: query, logger: logger}
}

// FetchUnseen returns unread messages matching the query and removes their UNREAD label
func (s *Service) FetchUnseen(ctx context.Context) ([]emaildomain.InboundMessage, error) {
	resp, err := s.srv.Users.Messages.List(user).Q(s.query).MaxResults(maxListResult).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	result := make([]emaildomain.InboundMessage, 0, len(resp.Messages))
	ids := make([]string, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := s.srv.Users.Messages.Get(user, ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			s.logger.Warn("failed to get message", zap.String("gmail_id", ref.Id), zap.Error(err))
			continue
		}
		inbound, err := toInbound(msg)
		if err != nil {
			s.logger.Warn("failed to parse message", zap.String("gmail_id", ref.Id), zap.Error(err))
			continue
		}
		result = append(result, *inbound)
		ids = append(ids, ref.Id)
	}

	if len(ids) > 0 {
		req := &gmail.BatchModifyMessagesRequest{Ids: ids, RemoveLabelIds: []string{unreadLabel}}
		if err := s.srv.Users.Messages.BatchModify(user, req).Context(ctx).Do(); err != nil {
			// Messages stay unread and are deduplicated by Message-ID on the next fetch
			s.logger.Warn("failed to mark messages read", zap.Int("count", len(ids)), zap.Error(err))
		}
	}

	s.logger.Info("fetched unread gmail messages", zap.Int("count", len(result)))
	return result, nil
}

// Watch registers Gmail push notifications for the inbox on a Pub/Sub topic
func (s *Service) Watch(ctx context.Context, topicName string) (uint64, error) {
	// Only one watch per mailbox is allowed
	_ = s.srv.Users.Stop(user).Context(ctx).Do()

	resp, err := s.srv.Users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	s.logger.Info("gmail watch started", zap.String("topic", topicName), zap.Int64("expiration", resp.Expiration), zap.Uint64("history_id", resp.HistoryId))
	return resp.HistoryId, nil
}

func toInbound(msg *gmail.Message) (*emaildomain.InboundMessage, error) {
	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return nil, err
	}
	inbound, err := mailparse.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if inbound.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		inbound.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if inbound.BodyText == "" {
		inbound.BodyText = strings.TrimSpace(msg.Snippet)
	}
	return inbound, nil
}

// decodeRaw accepts padded and unpadded URL-safe base64
func decodeRaw(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("message has no raw content")
	}
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode raw message: %w", err)
		}
	}
	return data, nil
}
