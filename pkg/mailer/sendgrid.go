package mailer

import (
	"context"
	"fmt"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// SendGridDispatcher sends replies through the SendGrid v3 API
type SendGridDispatcher struct {
	client *sendgrid.Client
	from   string
	logger *zap.Logger
}

func NewSendGridDispatcher(apiKey, defaultFrom string, logger *zap.Logger) *SendGridDispatcher {
	return &SendGridDispatcher{client: sendgrid.NewSendClient(apiKey), from: defaultFrom, logger: logger}
}

func (s *SendGridDispatcher) Send(ctx context.Context, msg emaildomain.OutboundMessage) (*emaildomain.DeliveryReceipt, error) {
	from, to, err := validate(msg, s.from)
	if err != nil {
		return nil, err
	}

	m := sgmail.NewSingleEmail(
		sgmail.NewEmail(from.Name, from.Address),
		msg.Subject,
		sgmail.NewEmail(to.Name, to.Address),
		msg.Text,
		msg.HTML,
	)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}

	var messageID string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	s.logger.Info("reply sent", zap.String("to", to.Address), zap.String("message_id", messageID))
	return &emaildomain.DeliveryReceipt{
		OK:        true,
		MessageID: messageID,
		Accepted:  []string{to.Address},
		Response:  fmt.Sprintf("%d", resp.StatusCode),
		Provider:  ProviderSendGrid,
	}, nil
}
