package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/dto"
	"supportdesk-backend/internal/email/extractor"
	"supportdesk-backend/internal/email/repository"
	"supportdesk-backend/pkg/fuzzy"
	"supportdesk-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 200
	defaultSearchLimit = 20
	maxSearchScan      = 500
)

// FetchResult summarises one fetch-and-store run
type FetchResult struct {
	Fetched    int      `json:"fetched"`
	Stored     int      `json:"stored"`
	Duplicates int      `json:"duplicates"`
	Ignored    int      `json:"ignored"`
	IDs        []string `json:"ids"`
}

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	repo      repository.EmailRepository
	processor Processor
	source    emaildomain.MailSource
	events    EventService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(repo repository.EmailRepository, processor Processor, caps Capabilities, logger *zap.Logger) EmailUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &emailUsecase{
		repo:      repo,
		processor: processor,
		source:    caps.Source,
		events:    caps.Events,
		logger:    logger,
		now:       time.Now,
	}
}

func (u *emailUsecase) ListEmails(ctx context.Context, filter dto.ListEmailsRequest) ([]*emaildomain.Email, int64, error) {
	q := repository.EmailQuery{
		Priority:   emaildomain.Priority(strings.TrimSpace(filter.Priority)),
		Sentiment:  emaildomain.Sentiment(strings.TrimSpace(filter.Sentiment)),
		IsFiltered: filter.IsFiltered,
		Text:       strings.TrimSpace(filter.Query),
		Sort:       repository.SortNewest,
	}
	if s := strings.TrimSpace(filter.Status); s != "" {
		q.Statuses = []emaildomain.Status{emaildomain.Status(s)}
	}

	total, err := u.repo.Count(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count emails: %w", err)
	}

	q.Limit = filter.Limit
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	q.Limit = min(q.Limit, maxListLimit)
	q.Skip = max(filter.Offset, 0)

	emails, err := u.repo.Find(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	return emails, total, nil
}

func (u *emailUsecase) GetEmail(ctx context.Context, id string) (*emaildomain.Email, error) {
	email, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, fmt.Errorf("email %s: %w", id, emaildomain.ErrNotFound)
	}
	return email, nil
}

// CreateEmail stores an email posted by an integration. A known messageId
// returns the stored record instead of creating a duplicate.
func (u *emailUsecase) CreateEmail(ctx context.Context, req dto.CreateEmailRequest, process bool) (*emaildomain.Email, error) {
	if strings.TrimSpace(req.From) == "" {
		return nil, fmt.Errorf("%w: from is required", emaildomain.ErrValidation)
	}
	if req.MessageID != "" {
		existing, err := u.repo.FindByMessageID(ctx, req.MessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	receivedAt := u.now()
	if req.ReceivedAt != nil && !req.ReceivedAt.IsZero() {
		receivedAt = *req.ReceivedAt
	}
	email := &emaildomain.Email{
		ID:            uuid.New().String(),
		MessageID:     req.MessageID,
		From:          strings.TrimSpace(req.From),
		To:            emaildomain.StringArray(req.To),
		Subject:       req.Subject,
		BodyText:      req.BodyText,
		ReceivedAt:    receivedAt,
		IsFiltered:    extractor.IsSupportRequest(req.Subject, req.BodyText),
		Priority:      emaildomain.PriorityNormal,
		Sentiment:     emaildomain.SentimentNeutral,
		ExtractedInfo: emptyExtractedInfo(),
		KBMatches:     emaildomain.KBMatches{},
		Status:        emaildomain.StatusPending,
	}
	if email.To == nil {
		email.To = emaildomain.StringArray{}
	}
	if err := u.repo.Create(ctx, email); err != nil {
		return nil, fmt.Errorf("store email: %w", err)
	}

	if !process || u.processor == nil {
		return email, nil
	}
	processed, err := u.processor.Process(ctx, email.ID, ProcessOptions{})
	if err != nil {
		u.logger.Warn("processing new email failed", zap.String("email_id", email.ID), zap.Error(err))
		return email, nil
	}
	return processed, nil
}

func (u *emailUsecase) UpdateStatus(ctx context.Context, id string, status emaildomain.Status, force bool) (*emaildomain.Email, error) {
	if !isUpdatable(status) {
		return nil, fmt.Errorf("%w: status must be one of %v", emaildomain.ErrValidation, emaildomain.UpdatableStatuses)
	}
	email, err := u.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !force && !email.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", emaildomain.ErrInvalidTransition, email.Status, status)
	}
	if err := u.repo.UpdateByID(ctx, id, map[string]interface{}{repository.ColStatus: status}); err != nil {
		return nil, err
	}
	email.Status = status
	return email, nil
}

func isUpdatable(status emaildomain.Status) bool {
	for _, s := range emaildomain.UpdatableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (u *emailUsecase) Stats(ctx context.Context) (*dto.StatsSummary, error) {
	total, err := u.repo.Count(ctx, repository.EmailQuery{})
	if err != nil {
		return nil, err
	}
	byStatus, err := u.repo.CountBy(ctx, repository.FieldStatus)
	if err != nil {
		return nil, err
	}
	byPriority, err := u.repo.CountBy(ctx, repository.FieldPriority)
	if err != nil {
		return nil, err
	}
	bySentiment, err := u.repo.CountBy(ctx, repository.FieldSentiment)
	if err != nil {
		return nil, err
	}

	since := u.now().Add(-24 * time.Hour)
	total24, err := u.repo.Count(ctx, repository.EmailQuery{ReceivedSince: &since})
	if err != nil {
		return nil, err
	}
	pending, err := u.repo.Count(ctx, repository.EmailQuery{Statuses: []emaildomain.Status{emaildomain.StatusPending}})
	if err != nil {
		return nil, err
	}
	resolved, err := u.repo.Count(ctx, repository.EmailQuery{Statuses: []emaildomain.Status{emaildomain.StatusResolved}})
	if err != nil {
		return nil, err
	}

	return &dto.StatsSummary{
		Total:       total,
		ByStatus:    byStatus,
		ByPriority:  byPriority,
		BySentiment: bySentiment,
		Total24:     total24,
		Pending:     pending,
		Resolved:    resolved,
	}, nil
}

func (u *emailUsecase) Last24h(ctx context.Context) (*dto.Last24hStats, error) {
	since := u.now().Add(-24 * time.Hour)
	total, err := u.repo.Count(ctx, repository.EmailQuery{CreatedSince: &since})
	if err != nil {
		return nil, err
	}
	series, err := u.repo.HourlySeries(ctx, since)
	if err != nil {
		return nil, err
	}
	return &dto.Last24hStats{Total24: total, Series: series}, nil
}

// Search ranks the most recent emails against query with typo tolerance
func (u *emailUsecase) Search(ctx context.Context, query string, limit int) ([]*emaildomain.Email, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*emaildomain.Email{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	candidates, err := u.repo.Find(ctx, repository.EmailQuery{Sort: repository.SortNewest, Limit: maxSearchScan})
	if err != nil {
		return nil, err
	}

	type scoredEmail struct {
		email *emaildomain.Email
		score float64
	}
	matched := make([]scoredEmail, 0, limit)
	for _, e := range candidates {
		if score := fuzzy.RelevanceScore(query, e.Subject, e.From, e.BodyText); score > 0 {
			matched = append(matched, scoredEmail{email: e, score: score})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	results := make([]*emaildomain.Email, 0, min(limit, len(matched)))
	for i := 0; i < len(matched) && i < limit; i++ {
		results = append(results, matched[i].email)
	}
	return results, nil
}

// FetchAndStore pulls unseen mail, keeps support requests and stores new
// ones as pending. Messages already stored are skipped.
func (u *emailUsecase) FetchAndStore(ctx context.Context) (*FetchResult, error) {
	if u.source == nil {
		return nil, fmt.Errorf("%w: mail source", emaildomain.ErrCapabilityUnavailable)
	}
	messages, err := u.source.FetchUnseen(ctx)
	if err != nil {
		metrics.RecordFetched("error")
		return nil, fmt.Errorf("%w: fetch unseen mail: %v", emaildomain.ErrTransportFailure, err)
	}

	result := &FetchResult{Fetched: len(messages), IDs: []string{}}
	for _, msg := range messages {
		if !extractor.IsSupportRequest(msg.Subject, msg.BodyText) {
			result.Ignored++
			metrics.RecordFetched("ignored")
			continue
		}
		if msg.MessageID != "" {
			existing, err := u.repo.FindByMessageID(ctx, msg.MessageID)
			if err != nil {
				return result, fmt.Errorf("check message %s: %w", msg.MessageID, err)
			}
			if existing != nil {
				result.Duplicates++
				metrics.RecordFetched("duplicate")
				continue
			}
		}

		receivedAt := msg.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = u.now()
		}
		to := emaildomain.StringArray(msg.To)
		if to == nil {
			to = emaildomain.StringArray{}
		}
		email := &emaildomain.Email{
			ID:            uuid.New().String(),
			MessageID:     msg.MessageID,
			From:          msg.From,
			To:            to,
			Subject:       msg.Subject,
			BodyText:      msg.BodyText,
			ReceivedAt:    receivedAt,
			IsFiltered:    true,
			Priority:      emaildomain.PriorityNormal,
			Sentiment:     emaildomain.SentimentNeutral,
			ExtractedInfo: emptyExtractedInfo(),
			KBMatches:     emaildomain.KBMatches{},
			Status:        emaildomain.StatusPending,
		}
		if err := u.repo.Create(ctx, email); err != nil {
			u.logger.Error("failed to store fetched email", zap.String("message_id", msg.MessageID), zap.Error(err))
			metrics.RecordFetched("error")
			continue
		}
		result.Stored++
		result.IDs = append(result.IDs, email.ID)
		metrics.RecordFetched("stored")
	}

	u.logger.Info("fetch finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("stored", result.Stored),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("ignored", result.Ignored))
	if result.Stored > 0 && u.events != nil {
		u.events.Broadcast(EventEmailsFetched, map[string]interface{}{
			"stored": result.Stored,
			"ids":    result.IDs,
		})
	}
	return result, nil
}
