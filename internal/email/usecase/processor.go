package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/extractor"
	"supportdesk-backend/internal/email/repository"
	"supportdesk-backend/pkg/metrics"

	"go.uber.org/zap"
)

const (
	kbQueryLength = 2000
	kbTopK        = 3
)

// ProcessOptions tune a single pipeline run
type ProcessOptions struct {
	// AutoSendUrgent overrides the configured auto-send flag when set
	AutoSendUrgent *bool
}

// Processor runs one stored email through the pipeline
type Processor interface {
	Process(ctx context.Context, id string, opts ProcessOptions) (*emaildomain.Email, error)
}

// EmailProcessor classifies a stored email, drafts a reply and
// optionally dispatches it right away when the email is urgent.
type EmailProcessor struct {
	repo     repository.EmailRepository
	caps     Capabilities
	cfg      PipelineConfig
	autoSend atomic.Bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewEmailProcessor creates the pipeline. Missing capabilities are reported once here.
func NewEmailProcessor(repo repository.EmailRepository, cfg PipelineConfig, caps Capabilities, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &EmailProcessor{
		repo:   repo,
		caps:   caps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	p.autoSend.Store(cfg.AutoSendUrgent)

	if caps.Retriever == nil {
		logger.Warn("knowledge retriever not configured, drafts will not use the knowledge base")
	}
	if caps.Generator == nil {
		logger.Warn("draft generator not configured, every draft will be the fallback text")
	}
	if caps.Dispatcher == nil {
		logger.Warn("mail dispatcher not configured, urgent replies cannot be auto-sent")
	}
	return p
}

// AutoSendUrgent reports the current process-wide auto-send flag
func (p *EmailProcessor) AutoSendUrgent() bool {
	return p.autoSend.Load()
}

// SetAutoSendUrgent changes the process-wide auto-send flag at runtime
func (p *EmailProcessor) SetAutoSendUrgent(enabled bool) {
	p.autoSend.Store(enabled)
	p.logger.Info("auto-send for urgent emails updated", zap.Bool("enabled", enabled))
}

// Process runs the pipeline on the stored email with the given id.
// Capability failures fall back to defaults and never abort the run.
func (p *EmailProcessor) Process(ctx context.Context, id string, opts ProcessOptions) (*emaildomain.Email, error) {
	start := p.now()
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: email id is required", emaildomain.ErrValidation)
	}

	email, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load email %s: %w", id, err)
	}
	if email == nil {
		return nil, fmt.Errorf("email %s: %w", id, emaildomain.ErrNotFound)
	}
	log := p.logger.With(zap.String("email_id", email.ID))

	email.IsFiltered = extractor.IsSupportRequest(email.Subject, email.BodyText)

	info := emptyExtractedInfo()
	runStage(log, "extract", func() {
		info = extractor.ExtractContactInfo(email.BodyText)
	})

	sentiment, priority := emaildomain.SentimentNeutral, emaildomain.PriorityNormal
	runStage(log, "classify", func() {
		sentiment = extractor.DetectSentiment(email.BodyText)
		priority = extractor.DetectPriority(email.BodyText)
	})
	if priority != emaildomain.PriorityUrgent && extractor.NeedsEscalation(strings.ToLower(email.Subject+" "+email.BodyText)) {
		priority = emaildomain.PriorityUrgent
		log.Info("escalated to urgent")
	}

	snippets := p.retrieve(ctx, log, email)
	draft := p.draft(ctx, log, email, snippets, sentiment)

	email.ExtractedInfo = info
	email.Sentiment = sentiment
	email.Priority = priority
	email.KBMatches = snippets
	email.DraftResponse = draft
	if email.Status == "" {
		email.Status = emaildomain.StatusPending
	}
	p.save(ctx, log, email)

	metrics.RecordProcessed(string(priority), p.now().Sub(start))
	p.publish(EventEmailProcessed, email)

	if priority == emaildomain.PriorityUrgent {
		p.notifyUrgent(ctx, log, email)
		if p.shouldAutoSend(opts) {
			p.autoDispatch(ctx, log, email)
		}
	}

	log.Info("email processed",
		zap.String("priority", string(email.Priority)),
		zap.String("sentiment", string(email.Sentiment)),
		zap.Int("kb_matches", len(email.KBMatches)),
		zap.Bool("auto_sent", email.AutoSent))
	return email, nil
}

func (p *EmailProcessor) shouldAutoSend(opts ProcessOptions) bool {
	if opts.AutoSendUrgent != nil {
		return *opts.AutoSendUrgent
	}
	return p.autoSend.Load()
}

func (p *EmailProcessor) retrieve(ctx context.Context, log *zap.Logger, email *emaildomain.Email) emaildomain.KBMatches {
	if p.caps.Retriever == nil {
		return emaildomain.KBMatches{}
	}
	query := truncateRunes(email.Subject+"\n\n"+email.BodyText, kbQueryLength)
	snippets, err := p.caps.Retriever.Query(ctx, query, kbTopK)
	if err != nil {
		log.Warn("knowledge base query failed, continuing without snippets", zap.Error(err))
		metrics.RecordCapabilityFailure("retriever")
		return emaildomain.KBMatches{}
	}
	if len(snippets) > kbTopK {
		snippets = snippets[:kbTopK]
	}
	return append(emaildomain.KBMatches{}, snippets...)
}

func (p *EmailProcessor) draft(ctx context.Context, log *zap.Logger, email *emaildomain.Email, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) string {
	if p.caps.Generator == nil {
		return FallbackDraft
	}
	text := fmt.Sprintf("Subject: %s\n\n%s", email.Subject, email.BodyText)
	draft, err := p.caps.Generator.GenerateDraftReply(ctx, text, snippets, sentiment)
	if err != nil {
		log.Warn("draft generation failed, using fallback", zap.Error(err))
		metrics.RecordCapabilityFailure("generator")
		return FallbackDraft
	}
	if draft = strings.TrimSpace(draft); draft == "" {
		log.Warn("draft generator returned nothing, using fallback")
		return FallbackDraft
	}
	return draft
}

// autoDispatch replies to an urgent email right away. Every outcome is
// recorded on the email; failures leave its status untouched.
func (p *EmailProcessor) autoDispatch(ctx context.Context, log *zap.Logger, email *emaildomain.Email) {
	to := ""
	if len(email.ExtractedInfo.Emails) > 0 {
		to = email.ExtractedInfo.Emails[0]
	}
	if to == "" {
		to = extractor.ParseRecipient(email.From)
	}

	now := p.now()
	if to == "" {
		log.Warn("auto-send skipped, no recipient address")
		email.AutoSent = false
		email.SendError = &emaildomain.SendError{Message: "no recipient address found for auto-send", At: now}
		p.save(ctx, log, email)
		metrics.RecordReply("auto", false)
		return
	}
	if p.caps.Dispatcher == nil {
		email.AutoSent = false
		email.SendError = &emaildomain.SendError{Message: emaildomain.ErrCapabilityUnavailable.Error() + ": mail dispatcher", At: now}
		p.save(ctx, log, email)
		metrics.RecordReply("auto", false)
		return
	}

	receipt, err := p.caps.Dispatcher.Send(ctx, emaildomain.OutboundMessage{
		To:      to,
		From:    p.cfg.DefaultFrom,
		Subject: replySubject(email.Subject, "Support"),
		Text:    email.DraftResponse,
		HTML:    renderHTML(email.DraftResponse),
	})
	if err != nil {
		log.Warn("auto-send failed", zap.String("to", to), zap.Error(err))
		failedAt := p.now()
		email.AutoSent = false
		email.LastSendError = truncateRunes(err.Error(), maxErrorLength)
		email.SendErrorAt = &failedAt
		p.save(ctx, log, email)
		metrics.RecordReply("auto", false)
		return
	}
	if !receipt.Succeeded() {
		log.Warn("auto-send not confirmed by provider", zap.String("to", to))
		email.AutoSent = false
		email.SendError = &emaildomain.SendError{Message: "mail provider did not confirm delivery", At: p.now()}
		p.save(ctx, log, email)
		metrics.RecordReply("auto", false)
		return
	}

	sentAt := p.now()
	email.Status = statusAfterSend(email.Status)
	email.AutoSent = true
	email.SentAt = &sentAt
	email.SentMessageID = receipt.MessageID
	email.SentInfo = sentInfoFrom(receipt, "auto")
	email.SendError = nil
	p.save(ctx, log, email)
	metrics.RecordReply("auto", true)
	p.publish(EventEmailSent, email)
	log.Info("urgent reply auto-sent", zap.String("to", to), zap.String("message_id", receipt.MessageID))
}

// save logs persistence failures; the pipeline result is still returned to the caller.
func (p *EmailProcessor) save(ctx context.Context, log *zap.Logger, email *emaildomain.Email) {
	if err := p.repo.Save(ctx, email); err != nil {
		log.Error("failed to persist email", zap.Error(err))
	}
}

func (p *EmailProcessor) publish(eventType string, email *emaildomain.Email) {
	if p.caps.Events == nil {
		return
	}
	p.caps.Events.Broadcast(eventType, map[string]interface{}{
		"id":        email.ID,
		"subject":   email.Subject,
		"priority":  email.Priority,
		"sentiment": email.Sentiment,
		"status":    email.Status,
		"autoSent":  email.AutoSent,
	})
}

func (p *EmailProcessor) notifyUrgent(ctx context.Context, log *zap.Logger, email *emaildomain.Email) {
	if p.caps.Notifier == nil {
		return
	}
	if err := p.caps.Notifier.NotifyUrgent(ctx, email); err != nil {
		log.Warn("urgent alert failed", zap.Error(err))
	}
}

// runStage runs a pure stage, keeping the caller's defaults if it panics
func runStage(log *zap.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline stage panicked", zap.String("stage", name), zap.Any("panic", r))
		}
	}()
	fn()
}
