package usecase

import (
	"context"
	"fmt"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/repository"

	"go.uber.org/zap"
)

const defaultBatchLimit = 50

// JobOutcome is the result of running one email through the pipeline
type JobOutcome struct {
	ID        string                `json:"id"`
	Queued    bool                  `json:"queued"`
	Inline    bool                  `json:"inline"`
	Priority  emaildomain.Priority  `json:"priority,omitempty"`
	Sentiment emaildomain.Sentiment `json:"sentiment,omitempty"`
	AutoSent  bool                  `json:"autoSent"`
	Error     string                `json:"error,omitempty"`
}

// BatchProcessor runs stored emails through the pipeline one after another
type BatchProcessor struct {
	repo      repository.EmailRepository
	processor Processor
	limit     int
	logger    *zap.Logger
}

func NewBatchProcessor(repo repository.EmailRepository, processor Processor, cfg PipelineConfig, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return &BatchProcessor{repo: repo, processor: processor, limit: limit, logger: logger}
}

// EnqueueProcess runs the pipeline for one email inline. There is no
// external queue, so the job is always reported as not queued.
func (b *BatchProcessor) EnqueueProcess(ctx context.Context, id string) JobOutcome {
	outcome := JobOutcome{ID: id, Inline: true}
	email, err := b.processor.Process(ctx, id, ProcessOptions{})
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Priority = email.Priority
	outcome.Sentiment = email.Sentiment
	outcome.AutoSent = email.AutoSent
	return outcome
}

// ProcessPendingFiltered processes pending support emails that have no
// draft yet, urgent first. Per-email failures are reported in the outcomes.
func (b *BatchProcessor) ProcessPendingFiltered(ctx context.Context, limit int) ([]JobOutcome, error) {
	if limit <= 0 {
		limit = b.limit
	}
	filtered := true
	emails, err := b.repo.Find(ctx, repository.EmailQuery{
		Statuses:     []emaildomain.Status{emaildomain.StatusPending},
		IsFiltered:   &filtered,
		WithoutDraft: true,
		Sort:         repository.SortPriority,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("select pending emails: %w", err)
	}

	outcomes := make([]JobOutcome, 0, len(emails))
	for _, email := range emails {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, JobOutcome{ID: email.ID, Inline: true, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, b.EnqueueProcess(ctx, email.ID))
	}

	if len(outcomes) > 0 {
		failed := 0
		for _, o := range outcomes {
			if o.Error != "" {
				failed++
			}
		}
		b.logger.Info("batch processing finished", zap.Int("processed", len(outcomes)-failed), zap.Int("failed", failed))
	}
	return outcomes, nil
}
