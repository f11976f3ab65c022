package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	emaildomain "supportdesk-backend/internal/email/domain"
	emaildto "supportdesk-backend/internal/email/dto"
	"supportdesk-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReplySender sends stored drafts one at a time or in bulk
type ReplySender interface {
	SendReply(ctx context.Context, id string, opts usecase.SendOptions) (*emaildomain.Email, error)
	DispatchPending(ctx context.Context, opts usecase.DispatchOptions) ([]usecase.DispatchOutcome, error)
}

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
	processor    usecase.Processor
	sender       ReplySender
	batch        usecase.BatchRunner
	samplePath   string
	logger       *zap.Logger
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase, processor usecase.Processor, sender ReplySender, batch usecase.BatchRunner, samplePath string, logger *zap.Logger) *EmailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailHandler{
		emailUsecase: emailUsecase,
		processor:    processor,
		sender:       sender,
		batch:        batch,
		samplePath:   samplePath,
		logger:       logger,
	}
}

// FetchMails pulls unseen mail into the store
// GET /api/fetch-mails
func (h *EmailHandler) FetchMails(c *gin.Context) {
	result, err := h.emailUsecase.FetchAndStore(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "fetch": result})
}

// FetchAndProcess fetches new mail and drains the pending queue
// GET /api/fetch-and-process
func (h *EmailHandler) FetchAndProcess(c *gin.Context) {
	ctx := c.Request.Context()
	result, err := h.emailUsecase.FetchAndStore(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	outcomes, err := h.batch.ProcessPendingFiltered(ctx, queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "fetch": result, "processed": outcomes})
}

// ProcessPending runs pending support emails through the pipeline
// POST /api/process-pending
func (h *EmailHandler) ProcessPending(c *gin.Context) {
	var req emaildto.ProcessPendingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	outcomes, err := h.batch.ProcessPendingFiltered(c.Request.Context(), req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(outcomes), "results": outcomes})
}

// ListEmails GET /api/emails
func (h *EmailHandler) ListEmails(c *gin.Context) {
	var req emaildto.ListEmailsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	emails, total, err := h.emailUsecase.ListEmails(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.EmailsResponse{
		OK:     true,
		Emails: emails,
		Limit:  pageLimit(req.Limit),
		Offset: max(req.Offset, 0),
		Total:  total,
	})
}

// CreateEmail stores an inbound email; ?process=true runs the pipeline right away
// POST /api/emails
func (h *EmailHandler) CreateEmail(c *gin.Context) {
	var req emaildto.CreateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	process, _ := strconv.ParseBool(c.Query("process"))
	email, err := h.emailUsecase.CreateEmail(c.Request.Context(), req, process)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "email": email})
}

// Search GET /api/emails/search?q=
func (h *EmailHandler) Search(c *gin.Context) {
	emails, err := h.emailUsecase.Search(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "emails": emails, "count": len(emails)})
}

// GetEmail GET /api/emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	email, err := h.emailUsecase.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
}

// ProcessEmail POST /api/emails/:id/process
func (h *EmailHandler) ProcessEmail(c *gin.Context) {
	var req emaildto.ProcessEmailRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	email, err := h.processor.Process(c.Request.Context(), c.Param("id"), usecase.ProcessOptions{AutoSendUrgent: req.AutoSendUrgent})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
}

// SendReply POST /api/emails/:id/send
func (h *EmailHandler) SendReply(c *gin.Context) {
	var req emaildto.SendReplyRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	email, err := h.sender.SendReply(c.Request.Context(), c.Param("id"), usecase.SendOptions{Force: req.Force, From: req.From})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
}

// SendPending POST /api/emails/send-pending
func (h *EmailHandler) SendPending(c *gin.Context) {
	var req emaildto.SendPendingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	outcomes, err := h.sender.DispatchPending(c.Request.Context(), usecase.DispatchOptions{
		Limit:       req.Limit,
		Force:       req.Force,
		Concurrency: req.Concurrency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	sent := 0
	for _, o := range outcomes {
		if o.OK {
			sent++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"total":   len(outcomes),
		"sent":    sent,
		"failed":  len(outcomes) - sent,
		"results": outcomes,
	})
}

// UpdateStatus POST /api/emails/:id/status
func (h *EmailHandler) UpdateStatus(c *gin.Context) {
	var req emaildto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	email, err := h.emailUsecase.UpdateStatus(c.Request.Context(), c.Param("id"), emaildomain.Status(req.Status), req.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
}

// StatsSummary GET /api/stats/summary
func (h *EmailHandler) StatsSummary(c *gin.Context) {
	stats, err := h.emailUsecase.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": stats})
}

// Last24h GET /api/stats/last24h
func (h *EmailHandler) Last24h(c *gin.Context) {
	stats, err := h.emailUsecase.Last24h(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "total24": stats.Total24, "series": stats.Series})
}

// LoadSample imports a CSV upload (form field "file") or the bundled sample file
// POST /api/sample/load
func (h *EmailHandler) LoadSample(c *gin.Context) {
	var r io.ReadCloser
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		r = f
	} else {
		f, err := os.Open(h.samplePath)
		if err != nil {
			h.logger.Warn("sample file unavailable", zap.String("path", h.samplePath), zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "sample file not found"})
			return
		}
		r = f
	}
	defer r.Close()

	count, err := h.emailUsecase.ImportCSV(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "imported": count})
}

// bindOptionalJSON accepts an empty body; it writes the 400 itself on bad input
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return false
	}
	return true
}

// pageLimit mirrors the clamp ListEmails applies
func pageLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return min(limit, 200)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// writeError maps domain errors to HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, emaildomain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, emaildomain.ErrValidation),
		errors.Is(err, emaildomain.ErrInvalidRecipient),
		errors.Is(err, emaildomain.ErrNoDraft):
		status = http.StatusBadRequest
	case errors.Is(err, emaildomain.ErrAlreadyResponded),
		errors.Is(err, emaildomain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, emaildomain.ErrCapabilityUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, emaildomain.ErrTransportFailure):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}
