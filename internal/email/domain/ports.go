package domain

import (
	"context"
	"time"
)

// KBSnippet is a knowledge-base entry returned by a similarity query.
type KBSnippet struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeRetriever returns the topK snippets most similar to text, best first.
type KnowledgeRetriever interface {
	Query(ctx context.Context, text string, topK int) ([]KBSnippet, error)
}

// DraftGenerator writes a reply draft for an email.
type DraftGenerator interface {
	GenerateDraftReply(ctx context.Context, emailText string, snippets []KBSnippet, sentiment Sentiment) (string, error)
}

// OutboundMessage is a reply ready for delivery.
type OutboundMessage struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// DeliveryReceipt is what a mail provider reports back after a send.
type DeliveryReceipt struct {
	OK        bool
	MessageID string
	Accepted  []string
	Response  string
	Provider  string
}

// Succeeded reports whether the provider confirmed the message.
func (r *DeliveryReceipt) Succeeded() bool {
	if r == nil {
		return false
	}
	return r.OK || r.MessageID != "" || len(r.Accepted) > 0
}

// MailDispatcher delivers outbound replies.
type MailDispatcher interface {
	Send(ctx context.Context, msg OutboundMessage) (*DeliveryReceipt, error)
}

// InboundMessage is a parsed message pulled from a mailbox.
type InboundMessage struct {
	MessageID  string
	From       string
	To         []string
	Subject    string
	BodyText   string
	ReceivedAt time.Time
}

// MailSource returns unseen inbound messages and marks them seen.
type MailSource interface {
	FetchUnseen(ctx context.Context) ([]InboundMessage, error)
}
