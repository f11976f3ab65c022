package ai

import (
	"context"

	emaildomain "supportdesk-backend/internal/email/domain"
)

// DraftService is the interface for AI reply drafting.
// Implement this interface to add new AI providers (OpenAI, Gemini, Ollama, etc.)
type DraftService interface {
	GenerateDraftReply(ctx context.Context, emailText string, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
