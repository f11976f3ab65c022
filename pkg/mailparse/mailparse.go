// Package mailparse turns raw RFC 5322 messages into inbound support emails.
package mailparse

import (
	"fmt"
	"io"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Parse reads headers and the best text body of a raw message. ReceivedAt
// stays zero when the message carries no usable Date header.
// The first text/plain part wins; an HTML-only message is flattened to text.
func Parse(r io.Reader) (*emaildomain.InboundMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	msg := &emaildomain.InboundMessage{}
	h := mr.Header
	msg.Subject, _ = h.Subject()
	msg.MessageID, _ = h.MessageID()
	if msg.MessageID != "" {
		msg.MessageID = "<" + msg.MessageID + ">"
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = formatAddress(from[0])
	} else {
		msg.From = strings.TrimSpace(h.Get("From"))
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, a := range to {
			msg.To = append(msg.To, a.Address)
		}
	}
	if date, err := h.Date(); err == nil {
		msg.ReceivedAt = date
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			break
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := ih.ContentType()
		body, _ := io.ReadAll(p.Body)
		switch {
		case ct == "text/plain" && plain == "":
			plain = string(body)
		case ct == "text/html" && html == "":
			html = string(body)
		case ct == "" && plain == "":
			plain = string(body)
		}
	}

	msg.BodyText = strings.TrimSpace(plain)
	if msg.BodyText == "" && html != "" {
		msg.BodyText = HTMLToText(html)
	}
	return msg, nil
}

// HTMLToText strips markup, scripts and styles and collapses whitespace per line
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return a.String()
}
