package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Email is a stored support email together with its analysis and reply state.
type Email struct {
	ID                   string        `json:"id" gorm:"primaryKey"`
	MessageID            string        `json:"messageId" gorm:"uniqueIndex:idx_emails_message_id,where:message_id <> ''"`
	From                 string        `json:"from" gorm:"index"`
	To                   StringArray   `json:"to" gorm:"type:jsonb"`
	Subject              string        `json:"subject"`
	BodyText             string        `json:"bodyText" gorm:"type:text"`
	ReceivedAt           time.Time     `json:"receivedAt" gorm:"index"`
	IsFiltered           bool          `json:"isFiltered" gorm:"index"`
	Priority             Priority      `json:"priority" gorm:"index;default:normal"`
	Sentiment            Sentiment     `json:"sentiment" gorm:"default:neutral"`
	ExtractedInfo        ExtractedInfo `json:"extractedInfo" gorm:"type:jsonb"`
	KBMatches            KBMatches     `json:"kbMatches" gorm:"type:jsonb"`
	DraftResponse        string        `json:"draftResponse" gorm:"type:text"`
	DraftResponseSubject string        `json:"draftResponseSubject,omitempty"`
	Status               Status        `json:"status" gorm:"index"`
	AutoSent             bool          `json:"autoSent"`
	SentAt               *time.Time    `json:"sentAt,omitempty"`
	SentMessageID        string        `json:"sentMessageId,omitempty"`
	SentInfo             *SentInfo     `json:"sentInfo,omitempty" gorm:"type:jsonb"`
	SendError            *SendError    `json:"sendError,omitempty" gorm:"type:jsonb"`
	LastSendError        string        `json:"lastSendError,omitempty" gorm:"type:text"`
	SendErrorAt          *time.Time    `json:"sendErrorAt,omitempty"`
	CreatedAt            time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}

// HasDraft reports whether a non-blank draft reply is stored.
func (e *Email) HasDraft() bool {
	return strings.TrimSpace(e.DraftResponse) != ""
}

// ExtractedInfo holds contact details pulled out of the email body.
type ExtractedInfo struct {
	Phones   []string `json:"phones"`
	Emails   []string `json:"emails"`
	OrderIDs []string `json:"orderIds"`
}

// KBMatches is the ordered list of knowledge-base snippets used for the draft.
type KBMatches []KBSnippet

// SentInfo is the delivery receipt kept after a successful send.
type SentInfo struct {
	MessageID string   `json:"messageId,omitempty"`
	Accepted  []string `json:"accepted,omitempty"`
	Response  string   `json:"response,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	SentBy    string   `json:"sentBy,omitempty"`
}

// SendError records the last failed delivery attempt.
type SendError struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// StringArray is a custom type to handle JSON array in GORM
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return jsonValue(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	*a = StringArray{}
	return jsonScan(value, a)
}

func (i ExtractedInfo) Value() (driver.Value, error) { return jsonValue(i) }
func (i *ExtractedInfo) Scan(value interface{}) error { return jsonScan(value, i) }

func (m KBMatches) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	return jsonValue(m)
}

func (m *KBMatches) Scan(value interface{}) error {
	*m = KBMatches{}
	return jsonScan(value, m)
}

func (s SentInfo) Value() (driver.Value, error) { return jsonValue(s) }
func (s *SentInfo) Scan(value interface{}) error { return jsonScan(value, s) }

func (s SendError) Value() (driver.Value, error) { return jsonValue(s) }
func (s *SendError) Scan(value interface{}) error { return jsonScan(value, s) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(value interface{}, dst interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dst)
}
