package extractor

import (
	"reflect"
	"strings"
	"testing"

	"supportdesk-backend/internal/email/domain"
)

func TestExtractContactInfo(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		phones []string
		emails []string
		orders []string
	}{
		{
			name:   "urgent access request",
			text:   "I cannot access my account, order #12345, call me at +1 555-123-4567",
			phones: []string{"+15551234567"},
			emails: []string{},
			orders: []string{"12345"},
		},
		{
			name:   "duplicate phones collapse",
			text:   "Call 555-123-4567 or 555-123-4567",
			phones: []string{"5551234567"},
			emails: []string{},
			orders: []string{},
		},
		{
			name:   "emails are lowercased and deduplicated",
			text:   "Contact John.Doe@Example.com or john.doe@example.com",
			phones: []string{},
			emails: []string{"john.doe@example.com"},
			orders: []string{},
		},
		{
			name:   "order ids in several spellings",
			text:   "ORDER 98765, Order#98765 and order # 1234",
			phones: []string{},
			emails: []string{},
			orders: []string{"98765", "1234"},
		},
		{
			name:   "empty text",
			text:   "",
			phones: []string{},
			emails: []string{},
			orders: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractContactInfo(tt.text)
			if !reflect.DeepEqual(got.Phones, tt.phones) {
				t.Errorf("Phones = %#v, want %#v", got.Phones, tt.phones)
			}
			if !reflect.DeepEqual(got.Emails, tt.emails) {
				t.Errorf("Emails = %#v, want %#v", got.Emails, tt.emails)
			}
			if !reflect.DeepEqual(got.OrderIDs, tt.orders) {
				t.Errorf("OrderIDs = %#v, want %#v", got.OrderIDs, tt.orders)
			}
		})
	}
}

func TestExtractContactInfoIsStableOnItsOwnOutput(t *testing.T) {
	text := "Reach me at +44 20 7946 0958 or (555) 010-9999, mail Ops@Example.org, " +
		"order #55512 and order 77777"
	first := ExtractContactInfo(text)

	phones := ExtractContactInfo(strings.Join(first.Phones, "; "))
	if !reflect.DeepEqual(phones.Phones, first.Phones) {
		t.Errorf("phones not stable: %#v then %#v", first.Phones, phones.Phones)
	}

	emails := ExtractContactInfo(strings.Join(first.Emails, " "))
	if !reflect.DeepEqual(emails.Emails, first.Emails) {
		t.Errorf("emails not stable: %#v then %#v", first.Emails, emails.Emails)
	}

	var rendered []string
	for _, id := range first.OrderIDs {
		rendered = append(rendered, "order #"+id)
	}
	orders := ExtractContactInfo(strings.Join(rendered, ", "))
	if !reflect.DeepEqual(orders.OrderIDs, first.OrderIDs) {
		t.Errorf("order ids not stable: %#v then %#v", first.OrderIDs, orders.OrderIDs)
	}
}

func TestDetectPriority(t *testing.T) {
	tests := []struct {
		text string
		want domain.Priority
	}{
		{"I cannot access my account", domain.PriorityUrgent},
		{"The dashboard is DOWN", domain.PriorityUrgent},
		{"please answer as soon as possible", domain.PriorityUrgent},
		{"Question about my invoice", domain.PriorityNormal},
		{"", domain.PriorityNormal},
	}
	for _, tt := range tests {
		if got := DetectPriority(tt.text); got != tt.want {
			t.Errorf("DetectPriority(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDetectSentiment(t *testing.T) {
	tests := []struct {
		text string
		want domain.Sentiment
	}{
		{"Thanks, great service", domain.SentimentPositive},
		{"Thank you for the update", domain.SentimentPositive},
		{"thanks, but this is a problem", domain.SentimentNegative},
		{"I am FRUSTRATED", domain.SentimentNegative},
		{"hello there", domain.SentimentNeutral},
	}
	for _, tt := range tests {
		if got := DetectSentiment(tt.text); got != tt.want {
			t.Errorf("DetectSentiment(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestIsSupportRequest(t *testing.T) {
	tests := []struct {
		subject string
		body    string
		want    bool
	}{
		{"Need help URGENT", "", true},
		{"Invoice", "Need HELP with billing", true},
		{"Feature Request", "", true},
		{"Newsletter", "Weekly digest", false},
	}
	for _, tt := range tests {
		if got := IsSupportRequest(tt.subject, tt.body); got != tt.want {
			t.Errorf("IsSupportRequest(%q, %q) = %v, want %v", tt.subject, tt.body, got, tt.want)
		}
	}
}

func TestNeedsEscalation(t *testing.T) {
	text := "I can't login to the portal"
	if DetectPriority(text) != domain.PriorityNormal {
		t.Fatalf("expected keyword priority to stay normal for %q", text)
	}
	if !NeedsEscalation(text) {
		t.Errorf("NeedsEscalation(%q) = false, want true", text)
	}
	if NeedsEscalation("just checking in") {
		t.Error("NeedsEscalation matched a calm message")
	}
}

func TestParseRecipient(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"Jane Doe <Jane@Example.com>", "Jane@Example.com"},
		{"jane@example.com", "jane@example.com"},
		{"reply to jane@example.com please", "jane@example.com"},
		{"no address here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseRecipient(tt.from); got != tt.want {
			t.Errorf("ParseRecipient(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}
