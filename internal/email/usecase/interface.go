package usecase

import (
	"context"
	"io"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/dto"
)

// EmailUsecase defines the dashboard operations over stored support emails
type EmailUsecase interface {
	ListEmails(ctx context.Context, filter dto.ListEmailsRequest) ([]*emaildomain.Email, int64, error)
	GetEmail(ctx context.Context, id string) (*emaildomain.Email, error)
	CreateEmail(ctx context.Context, req dto.CreateEmailRequest, process bool) (*emaildomain.Email, error)
	UpdateStatus(ctx context.Context, id string, status emaildomain.Status, force bool) (*emaildomain.Email, error)
	Stats(ctx context.Context) (*dto.StatsSummary, error)
	Last24h(ctx context.Context) (*dto.Last24hStats, error)
	Search(ctx context.Context, query string, limit int) ([]*emaildomain.Email, error)
	ImportCSV(ctx context.Context, r io.Reader) (int, error)
	FetchAndStore(ctx context.Context) (*FetchResult, error)
}

// EventService pushes real-time events to connected dashboards
type EventService interface {
	Broadcast(eventType string, payload interface{})
}

// UrgentNotifier alerts agents about emails that were escalated to urgent
type UrgentNotifier interface {
	NotifyUrgent(ctx context.Context, email *emaildomain.Email) error
}

// Fetcher pulls new inbound mail into the store
type Fetcher interface {
	FetchAndStore(ctx context.Context) (*FetchResult, error)
}

// BatchRunner drains pending support emails through the pipeline
type BatchRunner interface {
	ProcessPendingFiltered(ctx context.Context, limit int) ([]JobOutcome, error)
}

// PipelineConfig is the explicit configuration shared by the pipeline and dispatchers
type PipelineConfig struct {
	// AutoSendUrgent enables immediate dispatch of urgent drafts
	AutoSendUrgent bool
	// DefaultFrom is the sender address for outbound replies
	DefaultFrom string
	// BatchLimit caps how many pending emails one batch run processes
	BatchLimit int
}

// Capabilities are the optional collaborators of the pipeline.
// A nil capability disables the stage that uses it.
type Capabilities struct {
	Retriever  emaildomain.KnowledgeRetriever
	Generator  emaildomain.DraftGenerator
	Dispatcher emaildomain.MailDispatcher
	Source     emaildomain.MailSource
	Events     EventService
	Notifier   UrgentNotifier
}

// Event types broadcast over SSE
const (
	EventEmailProcessed = "email_processed"
	EventEmailSent      = "email_sent"
	EventEmailsFetched  = "emails_fetched"
)
