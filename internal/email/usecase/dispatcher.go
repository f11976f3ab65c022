package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/extractor"
	"supportdesk-backend/internal/email/repository"
	"supportdesk-backend/pkg/metrics"

	"go.uber.org/zap"
)

const (
	defaultDispatchLimit       = 50
	maxDispatchLimit           = 500
	defaultDispatchConcurrency = 3
	maxDispatchConcurrency     = 10
)

// DispatchOptions configure one bulk send run
type DispatchOptions struct {
	Limit       int
	Force       bool
	Concurrency int
}

// DispatchOutcome is the result of sending one draft
type DispatchOutcome struct {
	ID        string `json:"id"`
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendOptions configure a single manual send
type SendOptions struct {
	// Force resends even when the email was already answered
	Force bool
	// From overrides the default sender
	From string
}

// ReplyDispatcher sends stored drafts through the configured mail dispatcher
type ReplyDispatcher struct {
	repo       repository.EmailRepository
	dispatcher emaildomain.MailDispatcher
	events     EventService
	from       string
	logger     *zap.Logger
	now        func() time.Time
}

func NewReplyDispatcher(repo repository.EmailRepository, cfg PipelineConfig, caps Capabilities, logger *zap.Logger) *ReplyDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyDispatcher{
		repo:       repo,
		dispatcher: caps.Dispatcher,
		events:     caps.Events,
		from:       cfg.DefaultFrom,
		logger:     logger,
		now:        time.Now,
	}
}

func clampDispatch(opts DispatchOptions) DispatchOptions {
	if opts.Limit <= 0 {
		opts.Limit = defaultDispatchLimit
	}
	opts.Limit = min(opts.Limit, maxDispatchLimit)
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultDispatchConcurrency
	}
	opts.Concurrency = min(opts.Concurrency, maxDispatchConcurrency)
	return opts
}

// DispatchPending sends up to Limit drafts, urgent first, using a pool of
// Concurrency workers. Outcomes are returned in completion order.
func (d *ReplyDispatcher) DispatchPending(ctx context.Context, opts DispatchOptions) ([]DispatchOutcome, error) {
	opts = clampDispatch(opts)
	if d.dispatcher == nil {
		return nil, fmt.Errorf("%w: mail dispatcher", emaildomain.ErrCapabilityUnavailable)
	}

	q := repository.EmailQuery{
		HasDraft: true,
		Sort:     repository.SortPriority,
		Limit:    opts.Limit,
	}
	if !opts.Force {
		q.Statuses = []emaildomain.Status{emaildomain.StatusPending, emaildomain.StatusToSend, ""}
	}
	emails, err := d.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select drafts to send: %w", err)
	}
	if len(emails) == 0 {
		return []DispatchOutcome{}, nil
	}

	d.logger.Info("bulk send started",
		zap.Int("emails", len(emails)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("force", opts.Force))

	jobs := make(chan *emaildomain.Email, len(emails))
	for _, email := range emails {
		jobs <- email
	}
	close(jobs)

	var (
		mu       sync.Mutex
		outcomes = make([]DispatchOutcome, 0, len(emails))
		wg       sync.WaitGroup
	)
	workers := min(opts.Concurrency, len(emails))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for email := range jobs {
				var outcome DispatchOutcome
				if err := ctx.Err(); err != nil {
					outcome = DispatchOutcome{ID: email.ID, Error: err.Error()}
				} else {
					outcome = d.dispatchOne(ctx, email)
				}
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	sent := 0
	for _, o := range outcomes {
		if o.OK {
			sent++
		}
	}
	d.logger.Info("bulk send finished", zap.Int("sent", sent), zap.Int("failed", len(outcomes)-sent))
	return outcomes, nil
}

func (d *ReplyDispatcher) dispatchOne(ctx context.Context, email *emaildomain.Email) DispatchOutcome {
	log := d.logger.With(zap.String("email_id", email.ID))
	to := bulkRecipient(email)
	if !strings.Contains(to, "@") {
		d.recordFailure(ctx, log, email.ID, "no valid recipient address")
		metrics.RecordReply("bulk", false)
		return DispatchOutcome{ID: email.ID, Error: emaildomain.ErrInvalidRecipient.Error()}
	}

	subject := strings.TrimSpace(email.DraftResponseSubject)
	if subject == "" {
		subject = "Re: " + email.Subject
	}
	receipt, err := d.dispatcher.Send(ctx, emaildomain.OutboundMessage{
		To:      to,
		From:    d.from,
		Subject: subject,
		Text:    email.DraftResponse,
		HTML:    renderHTML(email.DraftResponse),
	})
	if err == nil && !receipt.Succeeded() {
		err = errors.New("mail provider did not confirm delivery")
	}
	if err != nil {
		log.Warn("bulk send failed", zap.String("to", to), zap.Error(err))
		d.recordFailure(ctx, log, email.ID, err.Error())
		metrics.RecordReply("bulk", false)
		return DispatchOutcome{ID: email.ID, Error: err.Error()}
	}

	patch := map[string]interface{}{
		repository.ColStatus:        statusAfterSend(email.Status),
		repository.ColSentAt:        d.now(),
		repository.ColSentMessageID: receipt.MessageID,
		repository.ColSentInfo:      sentInfoFrom(receipt, "bulk"),
		repository.ColSendError:     nil,
	}
	if err := d.repo.UpdateByID(ctx, email.ID, patch); err != nil {
		log.Error("failed to record bulk send", zap.Error(err))
	}
	metrics.RecordReply("bulk", true)
	d.publish(email.ID, receipt.MessageID, "bulk")
	return DispatchOutcome{ID: email.ID, OK: true, MessageID: receipt.MessageID}
}

func (d *ReplyDispatcher) recordFailure(ctx context.Context, log *zap.Logger, id, message string) {
	patch := map[string]interface{}{
		repository.ColSendError: &emaildomain.SendError{
			Message: truncateRunes(message, maxErrorLength),
			At:      d.now(),
		},
	}
	if err := d.repo.UpdateByID(ctx, id, patch); err != nil {
		log.Error("failed to record send error", zap.Error(err))
	}
}

// bulkRecipient prefers an address from the body, then the original
// recipients, then the sender.
func bulkRecipient(email *emaildomain.Email) string {
	if len(email.ExtractedInfo.Emails) > 0 && email.ExtractedInfo.Emails[0] != "" {
		return email.ExtractedInfo.Emails[0]
	}
	if len(email.To) > 0 && strings.TrimSpace(email.To[0]) != "" {
		return strings.TrimSpace(email.To[0])
	}
	if addr := extractor.ParseRecipient(email.From); addr != "" {
		return addr
	}
	return strings.TrimSpace(email.From)
}

// SendReply sends the stored draft of a single email
func (d *ReplyDispatcher) SendReply(ctx context.Context, id string, opts SendOptions) (*emaildomain.Email, error) {
	email, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load email %s: %w", id, err)
	}
	if email == nil {
		return nil, fmt.Errorf("email %s: %w", id, emaildomain.ErrNotFound)
	}
	if !email.HasDraft() {
		return nil, emaildomain.ErrNoDraft
	}
	if !opts.Force && !email.Status.IsOpen() {
		return nil, fmt.Errorf("%w: status is %s", emaildomain.ErrAlreadyResponded, email.Status)
	}
	if d.dispatcher == nil {
		return nil, fmt.Errorf("%w: mail dispatcher", emaildomain.ErrCapabilityUnavailable)
	}

	to := extractor.ParseRecipient(email.From)
	if to == "" && len(email.To) > 0 {
		to = strings.TrimSpace(email.To[0])
	}
	if to == "" {
		to = strings.TrimSpace(email.From)
	}
	if !strings.Contains(to, "@") {
		return nil, emaildomain.ErrInvalidRecipient
	}

	from := strings.TrimSpace(opts.From)
	if from == "" {
		from = d.from
	}
	log := d.logger.With(zap.String("email_id", email.ID))

	receipt, err := d.dispatcher.Send(ctx, emaildomain.OutboundMessage{
		To:      to,
		From:    from,
		Subject: replySubject(email.Subject, "Support"),
		Text:    email.DraftResponse,
		HTML:    renderHTML(email.DraftResponse),
	})
	if err == nil && !receipt.Succeeded() {
		err = errors.New("mail provider did not confirm delivery")
	}
	if err != nil {
		log.Warn("reply send failed", zap.String("to", to), zap.Error(err))
		d.recordFailure(ctx, log, email.ID, err.Error())
		metrics.RecordReply("manual", false)
		return nil, fmt.Errorf("%w: %v", emaildomain.ErrTransportFailure, err)
	}

	sentAt := d.now()
	email.Status = statusAfterSend(email.Status)
	email.SentAt = &sentAt
	email.SentMessageID = receipt.MessageID
	email.SentInfo = sentInfoFrom(receipt, "manual")
	email.SendError = nil
	patch := map[string]interface{}{
		repository.ColStatus:        email.Status,
		repository.ColSentAt:        sentAt,
		repository.ColSentMessageID: receipt.MessageID,
		repository.ColSentInfo:      email.SentInfo,
		repository.ColSendError:     nil,
	}
	if err := d.repo.UpdateByID(ctx, email.ID, patch); err != nil {
		return nil, fmt.Errorf("record sent reply: %w", err)
	}
	metrics.RecordReply("manual", true)
	d.publish(email.ID, receipt.MessageID, "manual")
	log.Info("reply sent", zap.String("to", to), zap.String("message_id", receipt.MessageID))
	return email, nil
}

func (d *ReplyDispatcher) publish(id, messageID, mode string) {
	if d.events == nil {
		return
	}
	d.events.Broadcast(EventEmailSent, map[string]interface{}{
		"id":        id,
		"messageId": messageID,
		"mode":      mode,
	})
}
