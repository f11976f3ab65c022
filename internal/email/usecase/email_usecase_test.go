package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/dto"
	"supportdesk-backend/internal/email/repository"
)

func TestFetchAndStoreDedup(t *testing.T) {
	repo := repository.NewMemoryEmailRepository()
	seedEmail(repo, &emaildomain.Email{ID: "known", MessageID: "<m2@mail>", From: "b@example.com", Subject: "help", IsFiltered: true, Status: emaildomain.StatusPending, DraftResponse: "done"})

	source := &fakeSource{messages: []emaildomain.InboundMessage{
		{MessageID: "<m1@mail>", From: "a@example.com", Subject: "Need help", BodyText: "cannot login", ReceivedAt: time.Now()},
		{MessageID: "<news@mail>", From: "news@shop.com", Subject: "Weekly deals", BodyText: "Our latest offers"},
		{MessageID: "<m2@mail>", From: "b@example.com", Subject: "Support", BodyText: "again"},
	}}
	events := &fakeEvents{}
	inner := NewEmailProcessor(repo, PipelineConfig{}, Capabilities{}, nil)
	counting := &countingProcessor{inner: inner}
	uc := NewEmailUsecase(repo, counting, Capabilities{Source: source, Events: events}, nil)
	batch := NewBatchProcessor(repo, counting, PipelineConfig{}, nil)

	result, err := uc.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("FetchAndStore() error = %v", err)
	}
	if result.Fetched != 3 || result.Stored != 1 || result.Duplicates != 1 || result.Ignored != 1 {
		t.Errorf("result = %+v", result)
	}
	if events.count(EventEmailsFetched) != 1 {
		t.Errorf("emails_fetched events = %d, want 1", events.count(EventEmailsFetched))
	}
	if _, err := batch.ProcessPendingFiltered(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	second, err := uc.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("second FetchAndStore() error = %v", err)
	}
	if second.Stored != 0 || second.Duplicates != 2 {
		t.Errorf("second result = %+v", second)
	}
	if _, err := batch.ProcessPendingFiltered(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	total, _ := repo.Count(context.Background(), repository.EmailQuery{})
	if total != 2 {
		t.Errorf("stored emails = %d, want 2", total)
	}
	if len(counting.ids) != 1 || counting.ids[0] != result.IDs[0] {
		t.Errorf("pipeline invocations = %v, want only %v", counting.ids, result.IDs)
	}
}

func TestFetchAndStoreWithoutSource(t *testing.T) {
	uc := NewEmailUsecase(repository.NewMemoryEmailRepository(), nil, Capabilities{}, nil)
	if _, err := uc.FetchAndStore(context.Background()); !errors.Is(err, emaildomain.ErrCapabilityUnavailable) {
		t.Errorf("error = %v, want ErrCapabilityUnavailable", err)
	}
}

func TestCreateEmail(t *testing.T) {
	repo := repository.NewMemoryEmailRepository()
	processor := NewEmailProcessor(repo, PipelineConfig{}, Capabilities{}, nil)
	uc := NewEmailUsecase(repo, processor, Capabilities{}, nil)
	ctx := context.Background()

	created, err := uc.CreateEmail(ctx, dto.CreateEmailRequest{
		MessageID: "<abc@mail>",
		From:      "Jane <jane@example.com>",
		Subject:   "Support request",
		BodyText:  "My order #99881 is urgent",
	}, true)
	if err != nil {
		t.Fatalf("CreateEmail() error = %v", err)
	}
	if !created.IsFiltered || created.Priority != emaildomain.PriorityUrgent || created.DraftResponse != FallbackDraft {
		t.Errorf("created = %+v", created)
	}

	dup, err := uc.CreateEmail(ctx, dto.CreateEmailRequest{MessageID: "<abc@mail>", From: "other@example.com"}, false)
	if err != nil {
		t.Fatalf("duplicate CreateEmail() error = %v", err)
	}
	if dup.ID != created.ID {
		t.Errorf("duplicate created a new record %s", dup.ID)
	}

	if _, err := uc.CreateEmail(ctx, dto.CreateEmailRequest{From: "  "}, false); !errors.Is(err, emaildomain.ErrValidation) {
		t.Errorf("blank from error = %v, want ErrValidation", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    emaildomain.Status
		to      emaildomain.Status
		force   bool
		wantErr error
	}{
		{name: "pending to responded", from: emaildomain.StatusPending, to: emaildomain.StatusResponded},
		{name: "responded to resolved", from: emaildomain.StatusResponded, to: emaildomain.StatusResolved},
		{name: "anything to archived", from: emaildomain.StatusResponded, to: emaildomain.StatusArchived},
		{name: "backwards rejected", from: emaildomain.StatusResolved, to: emaildomain.StatusPending, wantErr: emaildomain.ErrInvalidTransition},
		{name: "backwards forced", from: emaildomain.StatusResolved, to: emaildomain.StatusPending, force: true},
		{name: "to_send not updatable", from: emaildomain.StatusPending, to: emaildomain.StatusToSend, wantErr: emaildomain.ErrValidation},
		{name: "unknown status", from: emaildomain.StatusPending, to: "closed", wantErr: emaildomain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryEmailRepository()
			seedEmail(repo, &emaildomain.Email{ID: "e1", From: "a@example.com", Status: tt.from})
			uc := NewEmailUsecase(repo, nil, Capabilities{}, nil)

			got, err := uc.UpdateStatus(context.Background(), "e1", tt.to, tt.force)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateStatus() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("Status = %q, want %q", got.Status, tt.to)
			}
			stored, _ := repo.FindByID(context.Background(), "e1")
			if stored.Status != tt.to {
				t.Errorf("stored status = %q, want %q", stored.Status, tt.to)
			}
		})
	}
}

func TestListEmails(t *testing.T) {
	repo := repository.NewMemoryEmailRepository()
	base := time.Now().Add(-time.Hour)
	for i, p := range []emaildomain.Priority{emaildomain.PriorityUrgent, emaildomain.PriorityNormal, emaildomain.PriorityUrgent} {
		seedEmail(repo, &emaildomain.Email{
			From:       "a@example.com",
			Subject:    "help",
			Priority:   p,
			Status:     emaildomain.StatusPending,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	uc := NewEmailUsecase(repo, nil, Capabilities{}, nil)

	emails, total, err := uc.ListEmails(context.Background(), dto.ListEmailsRequest{Priority: "urgent", Limit: 1})
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}
	if total != 2 || len(emails) != 1 {
		t.Errorf("total = %d, page = %d, want 2 and 1", total, len(emails))
	}
	if !emails[0].ReceivedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("first email received at %v, want newest", emails[0].ReceivedAt)
	}
}

func TestStats(t *testing.T) {
	repo := repository.NewMemoryEmailRepository()
	now := time.Now()
	seedEmail(repo, &emaildomain.Email{From: "a@example.com", Priority: emaildomain.PriorityUrgent, Sentiment: emaildomain.SentimentNegative, Status: emaildomain.StatusPending, ReceivedAt: now})
	seedEmail(repo, &emaildomain.Email{From: "b@example.com", Priority: emaildomain.PriorityNormal, Sentiment: emaildomain.SentimentNeutral, Status: emaildomain.StatusPending, ReceivedAt: now.Add(-2 * time.Hour)})
	seedEmail(repo, &emaildomain.Email{From: "c@example.com", Priority: emaildomain.PriorityNormal, Sentiment: emaildomain.SentimentPositive, Status: emaildomain.StatusResolved, ReceivedAt: now.Add(-72 * time.Hour)})
	uc := NewEmailUsecase(repo, nil, Capabilities{}, nil)

	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 3 || stats.Total24 != 2 || stats.Pending != 2 || stats.Resolved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ByStatus) != 2 || stats.ByStatus[0].Key != "pending" || stats.ByStatus[0].Count != 2 {
		t.Errorf("ByStatus = %+v", stats.ByStatus)
	}
	if len(stats.BySentiment) != 3 {
		t.Errorf("BySentiment = %+v", stats.BySentiment)
	}

	last, err := uc.Last24h(context.Background())
	if err != nil {
		t.Fatalf("Last24h() error = %v", err)
	}
	if last.Total24 != 3 {
		t.Errorf("Total24 = %d, want 3 (all created just now)", last.Total24)
	}
	var sum int64
	for _, h := range last.Series {
		sum += h.Count
	}
	if sum != 3 {
		t.Errorf("series sum = %d, want 3", sum)
	}
}

func TestSearch(t *testing.T) {
	repo := repository.NewMemoryEmailRepository()
	seedEmail(repo, &emaildomain.Email{ID: "subject-hit", From: "a@example.com", Subject: "Refund request", BodyText: "hello"})
	seedEmail(repo, &emaildomain.Email{ID: "body-hit", From: "b@example.com", Subject: "Question", BodyText: "where is my refund"})
	seedEmail(repo, &emaildomain.Email{ID: "miss", From: "c@example.com", Subject: "Shipping", BodyText: "tracking number"})
	uc := NewEmailUsecase(repo, nil, Capabilities{}, nil)

	results, err := uc.Search(context.Background(), "refnd", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "subject-hit" {
		t.Errorf("top result = %s, want subject-hit", results[0].ID)
	}

	empty, err := uc.Search(context.Background(), "   ", 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("blank query = %v, %v", empty, err)
	}
}

func TestImportCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"sender,subject,body,date,priority,status",
		`alice@example.com,Help,"cannot login, please help",2025-08-18 09:12:00,URGENT,`,
		`,No sender,ignored,,,`,
		`bob@example.com,,thanks,not a date,,resolved`,
	}, "\n")

	repo := repository.NewMemoryEmailRepository()
	uc := NewEmailUsecase(repo, nil, Capabilities{}, nil)

	n, err := uc.ImportCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	emails, _ := repo.Find(context.Background(), repository.EmailQuery{})
	bySender := map[string]*emaildomain.Email{}
	for _, e := range emails {
		bySender[e.From] = e
	}
	alice := bySender["alice@example.com"]
	if alice == nil || alice.Priority != emaildomain.PriorityUrgent || alice.Status != emaildomain.StatusPending {
		t.Errorf("alice = %+v", alice)
	}
	if want := time.Date(2025, 8, 18, 9, 12, 0, 0, time.UTC); alice != nil && !alice.ReceivedAt.Equal(want) {
		t.Errorf("alice received at %v, want %v", alice.ReceivedAt, want)
	}
	bob := bySender["bob@example.com"]
	if bob == nil || bob.Subject != "(no subject)" || bob.Status != emaildomain.StatusResolved {
		t.Errorf("bob = %+v", bob)
	}
}
