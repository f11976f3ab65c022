package mailer

import (
	"context"
	"fmt"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendDispatcher sends replies through the Resend API
type ResendDispatcher struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

func NewResendDispatcher(apiKey, defaultFrom string, logger *zap.Logger) *ResendDispatcher {
	return &ResendDispatcher{client: resend.NewClient(apiKey), from: defaultFrom, logger: logger}
}

func (r *ResendDispatcher) Send(ctx context.Context, msg emaildomain.OutboundMessage) (*emaildomain.DeliveryReceipt, error) {
	from, to, err := validate(msg, r.from)
	if err != nil {
		return nil, err
	}

	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from.String(),
		To:      []string{to.Address},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("resend: %w", err)
	}

	r.logger.Info("reply sent", zap.String("to", to.Address), zap.String("message_id", sent.Id))
	return &emaildomain.DeliveryReceipt{
		OK:        sent.Id != "",
		MessageID: sent.Id,
		Accepted:  []string{to.Address},
		Provider:  ProviderResend,
	}, nil
}
