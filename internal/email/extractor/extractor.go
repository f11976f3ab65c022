// Package extractor holds the pure text classifiers applied to every support email.
package extractor

import (
	"regexp"
	"strings"

	"supportdesk-backend/internal/email/domain"
)

var (
	phonePattern      = regexp.MustCompile(`\+?\d[\d\s().-]{6,20}\d`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	orderPattern      = regexp.MustCompile(`(?i)order\s*#?\s*(\d{4,})`)
	phoneStrip        = regexp.MustCompile(`[^\d+]`)
	escalationPattern = regexp.MustCompile(`(?i)immediately|urgent|asap|cannot access|critical|down|can't access|can't login|unable to login`)
	angleAddress      = regexp.MustCompile(`<([^>]+)>`)
)

var urgentKeywords = []string{
	"immediately",
	"urgent",
	"critical",
	"cannot access",
	"can't access",
	"cant access",
	"asap",
	"as soon as possible",
	"down",
	"not working",
	"blocked",
}

var negativeKeywords = []string{
	"angry",
	"frustrated",
	"frustrat",
	"not working",
	"not happy",
	"bad",
	"worst",
	"issue",
	"problem",
	"can't",
	"cannot",
	"failed",
	"disappointed",
}

var positiveKeywords = []string{
	"thanks",
	"thank you",
	"appreciate",
	"great",
	"good",
	"happy",
	"love",
	"resolved",
}

// SupportKeywords decide whether an inbound email is a support request.
var SupportKeywords = []string{"support", "query", "request", "help"}

// ExtractContactInfo pulls phone numbers, email addresses and order ids out of text.
// Every list is deduplicated in first-seen order and is never nil.
func ExtractContactInfo(text string) domain.ExtractedInfo {
	info := domain.ExtractedInfo{
		Phones:   []string{},
		Emails:   []string{},
		OrderIDs: []string{},
	}
	if text == "" {
		return info
	}

	for _, m := range phonePattern.FindAllString(text, -1) {
		if phone := phoneStrip.ReplaceAllString(m, ""); phone != "" {
			info.Phones = appendUnique(info.Phones, phone)
		}
	}
	for _, m := range emailPattern.FindAllString(text, -1) {
		info.Emails = appendUnique(info.Emails, strings.ToLower(m))
	}
	for _, m := range orderPattern.FindAllStringSubmatch(text, -1) {
		if id := strings.TrimSpace(m[1]); id != "" {
			info.OrderIDs = appendUnique(info.OrderIDs, id)
		}
	}
	return info
}

// DetectPriority returns urgent when text contains any urgency keyword.
func DetectPriority(text string) domain.Priority {
	if containsAny(strings.ToLower(text), urgentKeywords) {
		return domain.PriorityUrgent
	}
	return domain.PriorityNormal
}

// DetectSentiment checks negative keywords before positive ones.
func DetectSentiment(text string) domain.Sentiment {
	lower := strings.ToLower(text)
	if containsAny(lower, negativeKeywords) {
		return domain.SentimentNegative
	}
	if containsAny(lower, positiveKeywords) {
		return domain.SentimentPositive
	}
	return domain.SentimentNeutral
}

func IsSupportRequest(subject, body string) bool {
	return containsAny(strings.ToLower(subject+" "+body), SupportKeywords)
}

// NeedsEscalation matches a broader urgency pattern than DetectPriority,
// including login failures.
func NeedsEscalation(text string) bool {
	return escalationPattern.MatchString(text)
}

// ParseRecipient returns the bare address from a From header value.
// The angle-bracket form wins over the first plain address.
func ParseRecipient(from string) string {
	if from == "" {
		return ""
	}
	if m := angleAddress.FindStringSubmatch(from); m != nil {
		if addr := strings.TrimSpace(m[1]); addr != "" {
			return addr
		}
	}
	return emailPattern.FindString(from)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
