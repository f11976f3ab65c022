package usecase

import (
	"html"
	"strings"
	"unicode/utf8"

	emaildomain "supportdesk-backend/internal/email/domain"
)

const (
	// FallbackDraft replaces a draft the generator could not produce
	FallbackDraft = "We couldn't generate an automated reply for this request. A human agent will respond shortly."

	maxErrorLength = 2000
)

// replySubject prefixes "Re: " unless the subject already carries it
func replySubject(subject, fallback string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = fallback
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// renderHTML wraps an escaped plain-text draft for the html alternative
func renderHTML(text string) string {
	return `<div style="white-space:pre-wrap;font-family:Arial,Helvetica,sans-serif;line-height:1.5">` +
		html.EscapeString(text) +
		`</div>`
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func sentInfoFrom(receipt *emaildomain.DeliveryReceipt, sentBy string) *emaildomain.SentInfo {
	return &emaildomain.SentInfo{
		MessageID: receipt.MessageID,
		Accepted:  receipt.Accepted,
		Response:  truncateRunes(receipt.Response, maxErrorLength),
		Provider:  receipt.Provider,
		SentBy:    sentBy,
	}
}

// statusAfterSend keeps records that already moved past responded where they are
func statusAfterSend(current emaildomain.Status) emaildomain.Status {
	if current.CanTransitionTo(emaildomain.StatusResponded) {
		return emaildomain.StatusResponded
	}
	return current
}

func emptyExtractedInfo() emaildomain.ExtractedInfo {
	return emaildomain.ExtractedInfo{Phones: []string{}, Emails: []string{}, OrderIDs: []string{}}
}
