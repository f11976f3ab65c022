package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	authrepo "supportdesk-backend/internal/auth/repository"
	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/scheduler"
	"supportdesk-backend/pkg/fcm"

	"go.uber.org/zap"
)

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) Broadcast(eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
}

type fakePush struct {
	topics    []string
	devices   [][]string
	failToken string
	topicErr  error
	last      fcm.NotificationData
}

func (f *fakePush) SendToTopic(_ context.Context, topic string, n fcm.NotificationData) error {
	f.topics = append(f.topics, topic)
	f.last = n
	return f.topicErr
}

func (f *fakePush) SendToDevices(_ context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.devices = append(f.devices, tokens)
	f.last = n
	if f.failToken != "" {
		return []string{f.failToken}, nil
	}
	return nil, nil
}

func TestNotifyUrgent(t *testing.T) {
	ctx := context.Background()
	devices := authrepo.NewMemoryDeviceTokenRepository()
	_ = devices.SaveToken(ctx, "agent-1", "good-token", "chrome")
	_ = devices.SaveToken(ctx, "agent-2", "stale-token", "safari")

	events := &recordedEvents{}
	push := &fakePush{failToken: "stale-token"}
	alerter := NewUrgentAlerter(events, push, devices, "support-urgent", nil)

	email := &emaildomain.Email{ID: "e1", From: `"Jane Doe" <jane@example.com>`, Subject: "Site down"}
	if err := alerter.NotifyUrgent(ctx, email); err != nil {
		t.Fatalf("NotifyUrgent() error = %v", err)
	}

	if len(events.types) != 1 || events.types[0] != EventUrgentEmail {
		t.Errorf("events = %v", events.types)
	}
	if len(push.topics) != 1 || push.topics[0] != "support-urgent" {
		t.Errorf("topics = %v", push.topics)
	}
	if len(push.devices) != 1 || len(push.devices[0]) != 2 {
		t.Errorf("device sends = %v", push.devices)
	}
	if push.last.Title != "Urgent support email from Jane Doe" || push.last.Data["email_id"] != "e1" {
		t.Errorf("notification = %+v", push.last)
	}

	tokens, _ := devices.AllTokens(ctx)
	if len(tokens) != 1 || tokens[0] != "good-token" {
		t.Errorf("tokens after cleanup = %v, want only good-token", tokens)
	}
}

func TestNotifyUrgentReportsPushFailure(t *testing.T) {
	push := &fakePush{topicErr: errors.New("fcm unavailable")}
	alerter := NewUrgentAlerter(nil, push, nil, "support-urgent", nil)
	if err := alerter.NotifyUrgent(context.Background(), &emaildomain.Email{ID: "e1"}); err == nil {
		t.Error("NotifyUrgent() error = nil, want push failure")
	}
}

func TestNotifyUrgentWithoutPush(t *testing.T) {
	events := &recordedEvents{}
	alerter := NewUrgentAlerter(events, nil, nil, "", nil)
	if err := alerter.NotifyUrgent(context.Background(), &emaildomain.Email{ID: "e1"}); err != nil {
		t.Fatalf("NotifyUrgent() error = %v", err)
	}
	if len(events.types) != 1 {
		t.Errorf("events = %v", events.types)
	}
}

type countingTrigger struct {
	calls int
}

func (c *countingTrigger) RunOnce(_ context.Context) (*scheduler.TickResult, error) {
	c.calls++
	return &scheduler.TickResult{}, nil
}

func TestHandleMessageDedup(t *testing.T) {
	trigger := &countingTrigger{}
	events := &recordedEvents{}
	s := &Service{trigger: trigger, events: events, logger: zap.NewNop(), lastHistoryID: make(map[string]uint64)}

	tests := []struct {
		name    string
		payload string
		handled bool
	}{
		{name: "first notification", payload: `{"emailAddress":"desk@example.com","historyId":100}`, handled: true},
		{name: "same history id", payload: `{"emailAddress":"desk@example.com","historyId":100}`},
		{name: "older history id", payload: `{"emailAddress":"desk@example.com","historyId":90}`},
		{name: "newer history id", payload: `{"emailAddress":"desk@example.com","historyId":101}`, handled: true},
		{name: "other mailbox", payload: `{"emailAddress":"sales@example.com","historyId":5}`, handled: true},
		{name: "garbage", payload: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.HandleMessage(context.Background(), []byte(tt.payload)); got != tt.handled {
				t.Errorf("HandleMessage() = %v, want %v", got, tt.handled)
			}
		})
	}
	if trigger.calls != 3 {
		t.Errorf("fetch triggers = %d, want 3", trigger.calls)
	}
	if len(events.types) != 3 {
		t.Errorf("mailbox events = %d, want 3", len(events.types))
	}
}

func TestSenderName(t *testing.T) {
	tests := map[string]string{
		`"Jane Doe" <jane@example.com>`: "Jane Doe",
		"Bob <bob@example.com>":         "Bob",
		"<anon@example.com>":            "<anon@example.com>",
		"plain@example.com":             "plain@example.com",
	}
	for in, want := range tests {
		if got := senderName(in); got != want {
			t.Errorf("senderName(%q) = %q, want %q", in, got, want)
		}
	}
}
