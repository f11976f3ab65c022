package ai

import (
	"context"
	"fmt"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/prompt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIService implements DraftService with the chat completions API
type OpenAIService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIService creates an OpenAI-backed draft service. baseURL is optional.
func NewOpenAIService(apiKey, model, baseURL string) *OpenAIService {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIService{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   600,
		temperature: 0.2,
	}
}

// GenerateDraftReply implements DraftService
func (s *OpenAIService) GenerateDraftReply(ctx context.Context, emailText string, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: prompt.SystemMessage(),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt.DraftReply(emailText, snippets, sentiment),
				},
			},
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
