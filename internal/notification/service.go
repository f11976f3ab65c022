package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"supportdesk-backend/internal/email/scheduler"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const EventMailboxUpdate = "mailbox_update"

// GmailNotification is the payload Gmail publishes on a watched mailbox change
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Trigger runs one fetch-and-process pass
type Trigger interface {
	RunOnce(ctx context.Context) (*scheduler.TickResult, error)
}

// Service listens for Gmail push notifications on Pub/Sub and runs a fetch
// for each new mailbox change, so mail is picked up without waiting for the timer.
type Service struct {
	pubsubClient *pubsub.Client
	trigger      Trigger
	events       Broadcaster
	topicName    string
	subName      string
	logger       *zap.Logger

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, subName, credentialsFile string, trigger Trigger, events Broadcaster, logger *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	// Accept a full resource name as well as the short topic name
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	if subName == "" {
		subName = topicName + "-sub"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		pubsubClient:  client,
		trigger:       trigger,
		events:        events,
		topicName:     topicName,
		subName:       subName,
		logger:        logger,
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start blocks receiving messages until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("starting pubsub listener", zap.String("topic", s.topicName), zap.String("subscription", s.subName))

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		s.logger.Error("pubsub subscription unavailable", zap.Error(err))
		return
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.HandleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("error receiving pubsub messages", zap.Error(err))
	}
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	s.logger.Info("created pubsub subscription", zap.String("subscription", s.subName))
	return sub, nil
}

// HandleMessage runs a fetch for a new mailbox change. Notifications with a
// history id that was already seen for the mailbox are ignored.
func (s *Service) HandleMessage(ctx context.Context, data []byte) bool {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		s.logger.Warn("failed to unmarshal notification", zap.Error(err))
		return false
	}

	s.mu.Lock()
	last, seen := s.lastHistoryID[n.EmailAddress]
	if seen && n.HistoryID <= last {
		s.mu.Unlock()
		s.logger.Debug("skipping duplicate notification", zap.Uint64("history_id", n.HistoryID))
		return false
	}
	s.lastHistoryID[n.EmailAddress] = n.HistoryID
	s.mu.Unlock()

	if s.events != nil {
		s.events.Broadcast(EventMailboxUpdate, map[string]interface{}{
			"email":     n.EmailAddress,
			"historyId": n.HistoryID,
		})
	}

	res, err := s.trigger.RunOnce(ctx)
	if err != nil {
		s.logger.Warn("push-triggered fetch failed", zap.Error(err))
		return true
	}
	if !res.Skipped {
		s.logger.Info("push-triggered fetch finished", zap.Int("processed", len(res.Processed)))
	}
	return true
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}
