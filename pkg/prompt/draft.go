// Package prompt builds the LLM prompts shared by every draft provider.
package prompt

import (
	"fmt"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"
)

const systemRole = "You are a professional, empathetic customer support assistant."

// SystemMessage is the role instruction for chat-style providers.
func SystemMessage() string {
	return systemRole
}

// DraftReply builds the user prompt for a reply draft.
func DraftReply(emailText string, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) string {
	if sentiment == "" {
		sentiment = emaildomain.SentimentNeutral
	}

	var kb strings.Builder
	if len(snippets) == 0 {
		kb.WriteString("(no matching articles)")
	}
	for i, s := range snippets {
		if i > 0 {
			kb.WriteString("\n\n")
		}
		fmt.Fprintf(&kb, "- %s: %s", s.Title, s.Content)
	}

	return fmt.Sprintf(`Customer sentiment: %s

Customer email:
%s

Relevant Knowledge Base:
%s

Write a concise, helpful draft reply to the customer. Acknowledge their situation, answer using the knowledge base where it applies, and do not invent account details. If the customer is upset, acknowledge it politely. Sign off as "Support Team".`, sentiment, emailText, kb.String())
}

// Standalone renders the system role and user prompt as one block for completion-style providers.
func Standalone(emailText string, snippets []emaildomain.KBSnippet, sentiment emaildomain.Sentiment) string {
	return systemRole + "\n\n" + DraftReply(emailText, snippets, sentiment)
}
