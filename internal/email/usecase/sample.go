package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var sampleDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ImportCSV loads sample emails from a CSV file with a header row.
// Recognised columns: from/sender, subject, body/bodyText, receivedAt/date,
// priority, sentiment and status. Rows without a sender are skipped.
func (u *emailUsecase) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read csv header: %v", emaildomain.ErrValidation, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	field := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := columns[name]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	inserted := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("%w: csv line %d: %v", emaildomain.ErrValidation, line, err)
		}

		from := field(row, "from", "From", "sender")
		if from == "" {
			u.logger.Debug("skipping sample row without sender", zap.Int("line", line))
			continue
		}
		subject := field(row, "subject", "Subject")
		if subject == "" {
			subject = "(no subject)"
		}
		body := field(row, "body", "bodyText", "Body")

		email := &emaildomain.Email{
			ID:            uuid.New().String(),
			From:          from,
			To:            emaildomain.StringArray{},
			Subject:       subject,
			BodyText:      body,
			ReceivedAt:    u.parseSampleDate(field(row, "receivedAt", "date")),
			IsFiltered:    true,
			Priority:      emaildomain.Priority(strings.ToLower(orDefault(field(row, "priority"), string(emaildomain.PriorityNormal)))),
			Sentiment:     emaildomain.Sentiment(strings.ToLower(orDefault(field(row, "sentiment"), string(emaildomain.SentimentNeutral)))),
			Status:        emaildomain.Status(strings.ToLower(orDefault(field(row, "status"), string(emaildomain.StatusPending)))),
			ExtractedInfo: emptyExtractedInfo(),
			KBMatches:     emaildomain.KBMatches{},
		}
		if !email.Status.IsValid() {
			email.Status = emaildomain.StatusPending
		}
		if err := u.repo.Create(ctx, email); err != nil {
			u.logger.Warn("failed to insert sample email", zap.Int("line", line), zap.Error(err))
			continue
		}
		inserted++
	}

	u.logger.Info("sample emails loaded", zap.Int("inserted", inserted))
	return inserted, nil
}

func (u *emailUsecase) parseSampleDate(value string) time.Time {
	for _, layout := range sampleDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return u.now()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
