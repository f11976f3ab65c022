package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/repository"
)

type fakeRetriever struct {
	snippets []emaildomain.KBSnippet
	err      error
	queries  []string
}

func (f *fakeRetriever) Query(_ context.Context, text string, topK int) ([]emaildomain.KBSnippet, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.snippets) > topK {
		return f.snippets[:topK], nil
	}
	return f.snippets, nil
}

type fakeGenerator struct {
	draft string
	err   error
	calls int
}

func (f *fakeGenerator) GenerateDraftReply(_ context.Context, _ string, _ []emaildomain.KBSnippet, _ emaildomain.Sentiment) (string, error) {
	f.calls++
	return f.draft, f.err
}

type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []emaildomain.OutboundMessage
	err      error
	failFor  map[string]error
	receipt  *emaildomain.DeliveryReceipt
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (f *fakeDispatcher) Send(_ context.Context, msg emaildomain.OutboundMessage) (*emaildomain.DeliveryReceipt, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxSeen = max(f.maxSeen, f.inFlight)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return nil, f.err
	}
	if err, ok := f.failFor[msg.To]; ok {
		return nil, err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &emaildomain.DeliveryReceipt{
		OK:        true,
		MessageID: fmt.Sprintf("<msg-%d@test>", len(f.sent)),
		Accepted:  []string{msg.To},
		Provider:  "fake",
	}, nil
}

func (f *fakeDispatcher) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSource struct {
	messages []emaildomain.InboundMessage
	err      error
	calls    int
}

func (f *fakeSource) FetchUnseen(_ context.Context) ([]emaildomain.InboundMessage, error) {
	f.calls++
	return f.messages, f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Broadcast(eventType string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeEvents) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) NotifyUrgent(_ context.Context, email *emaildomain.Email) error {
	f.notified = append(f.notified, email.ID)
	return nil
}

// countingProcessor records pipeline invocations
type countingProcessor struct {
	mu    sync.Mutex
	inner Processor
	ids   []string
	fail  map[string]bool
}

func (c *countingProcessor) Process(ctx context.Context, id string, opts ProcessOptions) (*emaildomain.Email, error) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	fail := c.fail[id]
	c.mu.Unlock()
	if fail {
		return nil, errors.New("boom")
	}
	return c.inner.Process(ctx, id, opts)
}

func seedEmail(repo repository.EmailRepository, e *emaildomain.Email) *emaildomain.Email {
	if e.ExtractedInfo.Phones == nil {
		e.ExtractedInfo = emptyExtractedInfo()
	}
	if e.To == nil {
		e.To = emaildomain.StringArray{}
	}
	if err := repo.Create(context.Background(), e); err != nil {
		panic(err)
	}
	return e
}
