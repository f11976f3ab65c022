package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/google/uuid"
)

var _ EmailRepository = (*MemoryEmailRepository)(nil)

// MemoryEmailRepository keeps emails in process memory.
// It backs tests and local runs without DATABASE_URL.
type MemoryEmailRepository struct {
	mu     sync.RWMutex
	emails map[string]*emaildomain.Email
	now    func() time.Time
}

// NewMemoryEmailRepository creates an empty in-memory EmailRepository
func NewMemoryEmailRepository() *MemoryEmailRepository {
	return &MemoryEmailRepository{
		emails: make(map[string]*emaildomain.Email),
		now:    time.Now,
	}
}

func (r *MemoryEmailRepository) Create(_ context.Context, email *emaildomain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if _, exists := r.emails[email.ID]; exists {
		return fmt.Errorf("email %s already exists", email.ID)
	}
	if email.MessageID != "" {
		for _, e := range r.emails {
			if e.MessageID == email.MessageID {
				return fmt.Errorf("duplicate message id %q", email.MessageID)
			}
		}
	}
	now := r.now()
	if email.CreatedAt.IsZero() {
		email.CreatedAt = now
	}
	email.UpdatedAt = now
	r.emails[email.ID] = cloneEmail(email)
	return nil
}

func (r *MemoryEmailRepository) FindByID(_ context.Context, id string) (*emaildomain.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.emails[id]; ok {
		return cloneEmail(e), nil
	}
	return nil, nil
}

func (r *MemoryEmailRepository) FindByMessageID(_ context.Context, messageID string) (*emaildomain.Email, error) {
	if messageID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.emails {
		if e.MessageID == messageID {
			return cloneEmail(e), nil
		}
	}
	return nil, nil
}

func (r *MemoryEmailRepository) Find(_ context.Context, q EmailQuery) ([]*emaildomain.Email, error) {
	r.mu.RLock()
	matched := r.filter(q)
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if q.Sort == SortPriority && a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.After(b.ReceivedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []*emaildomain.Email{}, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (r *MemoryEmailRepository) Count(_ context.Context, q EmailQuery) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.filter(q))), nil
}

func (r *MemoryEmailRepository) Save(_ context.Context, email *emaildomain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.emails[email.ID]; !ok {
		return emaildomain.ErrNotFound
	}
	email.UpdatedAt = r.now()
	r.emails[email.ID] = cloneEmail(email)
	return nil
}

func (r *MemoryEmailRepository) UpdateByID(_ context.Context, id string, patch map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.emails[id]
	if !ok {
		return emaildomain.ErrNotFound
	}
	updated := cloneEmail(e)
	for col, v := range patch {
		if err := applyColumn(updated, col, v); err != nil {
			return err
		}
	}
	updated.UpdatedAt = r.now()
	r.emails[id] = updated
	return nil
}

func (r *MemoryEmailRepository) CountBy(_ context.Context, field string) ([]GroupCount, error) {
	if !groupableField(field) {
		return nil, fmt.Errorf("%w: cannot group by %q", emaildomain.ErrValidation, field)
	}
	r.mu.RLock()
	counts := make(map[string]int64)
	for _, e := range r.emails {
		var key string
		switch field {
		case FieldStatus:
			key = string(e.Status)
		case FieldPriority:
			key = string(e.Priority)
		case FieldSentiment:
			key = string(e.Sentiment)
		}
		counts[key]++
	}
	r.mu.RUnlock()

	rows := make([]GroupCount, 0, len(counts))
	for k, c := range counts {
		rows = append(rows, GroupCount{Key: k, Count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}

func (r *MemoryEmailRepository) HourlySeries(_ context.Context, since time.Time) ([]HourlyCount, error) {
	r.mu.RLock()
	counts := make(map[time.Time]int64)
	for _, e := range r.emails {
		if e.CreatedAt.Before(since) {
			continue
		}
		counts[e.CreatedAt.Truncate(time.Hour)]++
	}
	r.mu.RUnlock()

	rows := make([]HourlyCount, 0, len(counts))
	for h, c := range counts {
		rows = append(rows, HourlyCount{Hour: h, Count: c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Hour.Before(rows[j].Hour) })
	return rows, nil
}

// filter must be called with r.mu held
func (r *MemoryEmailRepository) filter(q EmailQuery) []*emaildomain.Email {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	var out []*emaildomain.Email
	for _, e := range r.emails {
		if len(q.Statuses) > 0 && !statusIn(e.Status, q.Statuses) {
			continue
		}
		if q.Priority != "" && e.Priority != q.Priority {
			continue
		}
		if q.Sentiment != "" && e.Sentiment != q.Sentiment {
			continue
		}
		if q.IsFiltered != nil && e.IsFiltered != *q.IsFiltered {
			continue
		}
		if q.HasDraft && !e.HasDraft() {
			continue
		}
		if q.WithoutDraft && e.HasDraft() {
			continue
		}
		if q.ReceivedSince != nil && e.ReceivedAt.Before(*q.ReceivedSince) {
			continue
		}
		if q.CreatedSince != nil && e.CreatedAt.Before(*q.CreatedSince) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(e.Subject+"\n"+e.From+"\n"+e.BodyText), text) {
			continue
		}
		out = append(out, cloneEmail(e))
	}
	return out
}

func statusIn(s emaildomain.Status, set []emaildomain.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func applyColumn(e *emaildomain.Email, col string, v interface{}) error {
	var ok bool
	switch col {
	case ColStatus:
		var s emaildomain.Status
		if s, ok = v.(emaildomain.Status); !ok {
			var str string
			str, ok = v.(string)
			s = emaildomain.Status(str)
		}
		e.Status = s
	case ColAutoSent:
		e.AutoSent, ok = v.(bool)
	case ColSentAt:
		e.SentAt, ok = timePtr(v)
	case ColSendErrorAt:
		e.SendErrorAt, ok = timePtr(v)
	case ColSentMessageID:
		e.SentMessageID, ok = v.(string)
	case ColLastSendError:
		e.LastSendError, ok = v.(string)
	case ColDraftResponse:
		e.DraftResponse, ok = v.(string)
	case ColDraftSubject:
		e.DraftResponseSubject, ok = v.(string)
	case ColSentInfo:
		switch info := v.(type) {
		case emaildomain.SentInfo:
			e.SentInfo, ok = &info, true
		case *emaildomain.SentInfo:
			e.SentInfo, ok = info, true
		case nil:
			e.SentInfo, ok = nil, true
		}
	case ColSendError:
		switch se := v.(type) {
		case emaildomain.SendError:
			e.SendError, ok = &se, true
		case *emaildomain.SendError:
			e.SendError, ok = se, true
		case nil:
			e.SendError, ok = nil, true
		}
	default:
		return fmt.Errorf("%w: unknown column %q", emaildomain.ErrValidation, col)
	}
	if !ok {
		return fmt.Errorf("%w: bad value %T for column %q", emaildomain.ErrValidation, v, col)
	}
	return nil
}

func timePtr(v interface{}) (*time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return &t, true
	case *time.Time:
		return t, true
	case nil:
		return nil, true
	}
	return nil, false
}

func cloneEmail(e *emaildomain.Email) *emaildomain.Email {
	c := *e
	c.To = cloneStrings(e.To)
	if e.KBMatches != nil {
		c.KBMatches = append(emaildomain.KBMatches{}, e.KBMatches...)
	}
	c.ExtractedInfo = emaildomain.ExtractedInfo{
		Phones:   cloneStrings(e.ExtractedInfo.Phones),
		Emails:   cloneStrings(e.ExtractedInfo.Emails),
		OrderIDs: cloneStrings(e.ExtractedInfo.OrderIDs),
	}
	if e.SentInfo != nil {
		info := *e.SentInfo
		info.Accepted = cloneStrings(e.SentInfo.Accepted)
		c.SentInfo = &info
	}
	if e.SendError != nil {
		se := *e.SendError
		c.SendError = &se
	}
	if e.SentAt != nil {
		t := *e.SentAt
		c.SentAt = &t
	}
	if e.SendErrorAt != nil {
		t := *e.SendErrorAt
		c.SendErrorAt = &t
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
