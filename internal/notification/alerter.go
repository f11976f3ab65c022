package notification

import (
	"context"
	"fmt"
	"strings"

	authrepo "supportdesk-backend/internal/auth/repository"
	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/fcm"

	"go.uber.org/zap"
)

const EventUrgentEmail = "urgent_email"

// Broadcaster pushes an event to connected dashboards
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// PushSender delivers browser push notifications
type PushSender interface {
	SendToTopic(ctx context.Context, topic string, n fcm.NotificationData) error
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

// UrgentAlerter tells agents about urgent support emails over SSE and FCM
type UrgentAlerter struct {
	events  Broadcaster
	push    PushSender
	devices authrepo.DeviceTokenRepository
	topic   string
	logger  *zap.Logger
}

func NewUrgentAlerter(events Broadcaster, push PushSender, devices authrepo.DeviceTokenRepository, topic string, logger *zap.Logger) *UrgentAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UrgentAlerter{events: events, push: push, devices: devices, topic: topic, logger: logger}
}

// NotifyUrgent broadcasts the alert and pushes it to the FCM topic and every
// registered agent device. Push failures are returned after all channels were tried.
func (a *UrgentAlerter) NotifyUrgent(ctx context.Context, email *emaildomain.Email) error {
	if a.events != nil {
		a.events.Broadcast(EventUrgentEmail, map[string]interface{}{
			"id":      email.ID,
			"from":    email.From,
			"subject": email.Subject,
		})
	}
	if a.push == nil {
		return nil
	}

	n := fcm.NotificationData{
		Title: "Urgent support email from " + senderName(email.From),
		Body:  truncate(orDefault(email.Subject, "(no subject)"), 100),
		Data: map[string]string{
			"type":     EventUrgentEmail,
			"email_id": email.ID,
		},
		ClickAction: "/emails/" + email.ID,
	}

	var errs []string
	if a.topic != "" {
		if err := a.push.SendToTopic(ctx, a.topic, n); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if a.devices != nil {
		tokens, err := a.devices.AllTokens(ctx)
		if err != nil {
			errs = append(errs, err.Error())
		} else if len(tokens) > 0 {
			failed, err := a.push.SendToDevices(ctx, tokens, n)
			if err != nil {
				errs = append(errs, err.Error())
			}
			// Cleanup failed tokens
			for _, token := range failed {
				if err := a.devices.DeleteToken(ctx, token); err != nil {
					a.logger.Warn("failed to delete stale device token", zap.Error(err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("urgent alert: %s", strings.Join(errs, "; "))
	}
	return nil
}

func senderName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		if name := strings.Trim(strings.TrimSpace(from[:i]), `"`); name != "" {
			return name
		}
	}
	return strings.TrimSpace(from)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
