package repository

import (
	"context"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
)

// SortOrder selects how Find orders its results.
type SortOrder int

const (
	// SortNewest orders by received_at desc, then created_at desc
	SortNewest SortOrder = iota
	// SortPriority orders urgent first, then newest received first
	SortPriority
)

// EmailQuery filters emails. Zero values mean "no filter".
type EmailQuery struct {
	// Statuses matches any of the listed values; an empty Status matches records with no status.
	Statuses      []emaildomain.Status
	Priority      emaildomain.Priority
	Sentiment     emaildomain.Sentiment
	IsFiltered    *bool
	HasDraft      bool
	WithoutDraft  bool
	ReceivedSince *time.Time
	CreatedSince  *time.Time
	// Text is a case-insensitive substring match over subject, sender and body.
	Text  string
	Sort  SortOrder
	Limit int
	Skip  int
}

// GroupCount is one bucket of a group-by count.
type GroupCount struct {
	Key   string `json:"_id"`
	Count int64  `json:"count"`
}

// HourlyCount is the number of emails created during one hour.
type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// Columns accepted by UpdateByID patches.
const (
	ColStatus        = "status"
	ColAutoSent      = "auto_sent"
	ColSentAt        = "sent_at"
	ColSentMessageID = "sent_message_id"
	ColSentInfo      = "sent_info"
	ColSendError     = "send_error"
	ColLastSendError = "last_send_error"
	ColSendErrorAt   = "send_error_at"
	ColDraftResponse = "draft_response"
	ColDraftSubject  = "draft_response_subject"
)

// Fields accepted by CountBy.
const (
	FieldStatus    = "status"
	FieldPriority  = "priority"
	FieldSentiment = "sentiment"
)

// EmailRepository defines the record store for support emails
type EmailRepository interface {
	// Create assigns an ID when missing and inserts the email
	Create(ctx context.Context, email *emaildomain.Email) error
	// FindByID returns nil, nil when the email does not exist
	FindByID(ctx context.Context, id string) (*emaildomain.Email, error)
	// FindByMessageID returns nil, nil when no email carries messageID
	FindByMessageID(ctx context.Context, messageID string) (*emaildomain.Email, error)
	Find(ctx context.Context, q EmailQuery) ([]*emaildomain.Email, error)
	Count(ctx context.Context, q EmailQuery) (int64, error)
	// Save overwrites every column of an existing email
	Save(ctx context.Context, email *emaildomain.Email) error
	// UpdateByID applies a partial update keyed by the Col* constants
	UpdateByID(ctx context.Context, id string, patch map[string]interface{}) error
	// CountBy groups all emails by one of the Field* constants
	CountBy(ctx context.Context, field string) ([]GroupCount, error)
	// HourlySeries counts emails created since the given time per hour, oldest first
	HourlySeries(ctx context.Context, since time.Time) ([]HourlyCount, error)
}
