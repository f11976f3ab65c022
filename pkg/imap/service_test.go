package imap

import (
	"bytes"
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
)

func TestNewServiceDefaults(t *testing.T) {
	if _, err := NewService(Config{}, nil); err == nil {
		t.Fatal("expected error without host and user")
	}
	s, err := NewService(Config{Host: "imap.example.com", User: "desk"}, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if s.config.Port != 993 || s.config.Mailbox != "INBOX" {
		t.Errorf("defaults = %+v", s.config)
	}
}

func TestParseMessage(t *testing.T) {
	section := &goimap.BodySectionName{}
	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("envelope fills missing headers", func(t *testing.T) {
		raw := "Content-Type: text/plain\r\n\r\nPlease call me back.\r\n"
		msg := &goimap.Message{
			Uid: 7,
			Envelope: &goimap.Envelope{
				Date:      date,
				Subject:   "Callback",
				MessageId: "<env@example.com>",
				From:      []*goimap.Address{{MailboxName: "jane", HostName: "example.com"}},
				To:        []*goimap.Address{{MailboxName: "support", HostName: "example.com"}},
			},
			Body: map[*goimap.BodySectionName]goimap.Literal{section: bytes.NewBufferString(raw)},
		}

		got, err := parseMessage(msg, section)
		if err != nil {
			t.Fatalf("parseMessage() error = %v", err)
		}
		if got.From != "jane@example.com" || got.Subject != "Callback" || got.MessageID != "<env@example.com>" {
			t.Errorf("parsed = %+v", got)
		}
		if len(got.To) != 1 || got.To[0] != "support@example.com" {
			t.Errorf("To = %v", got.To)
		}
		if !got.ReceivedAt.Equal(date) {
			t.Errorf("ReceivedAt = %v, want envelope date", got.ReceivedAt)
		}
		if got.BodyText != "Please call me back." {
			t.Errorf("BodyText = %q", got.BodyText)
		}
	})

	t.Run("nil message", func(t *testing.T) {
		got, err := parseMessage(nil, section)
		if err != nil || got != nil {
			t.Errorf("parseMessage(nil) = %v, %v", got, err)
		}
	})
}
