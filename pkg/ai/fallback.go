package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"

	"go.uber.org/zap"
)

// NamedProvider pairs a DraftService with a label for logs
type NamedProvider struct {
	Name    string
	Service DraftService
}

// FallbackService tries each provider in order until one returns a draft
type FallbackService struct {
	providers []NamedProvider
	logger    *zap.Logger
}

// NewFallbackService creates a new fallback service over the given providers
func NewFallbackService(logger *zap.Logger, providers ...NamedProvider) *FallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackService{
		providers: providers,
		logger:    logger,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func failureReason(err error) string {
	switch {
	case isQuotaError(err):
		return "quota"
	case isConnectionError(err):
		return "connection"
	default:
		return "error"
	}
}

// GenerateDraftReply implements DraftService
func (f *FallbackService) GenerateDraftReply(ctx context.Context, emailText string, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) (string, error) {
	var lastErr error
	for _, p := range f.providers {
		if p.Service == nil {
			continue
		}
		draft, err := p.Service.GenerateDraftReply(ctx, emailText, snippets, sentiment)
		if err == nil && strings.TrimSpace(draft) != "" {
			return draft, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned an empty draft", p.Name)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger.Warn("draft provider failed, trying next",
			zap.String("provider", p.Name),
			zap.String("reason", failureReason(err)),
			zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		return "", fmt.Errorf("no draft provider configured")
	}
	return "", fmt.Errorf("all draft providers failed: %w", lastErr)
}
