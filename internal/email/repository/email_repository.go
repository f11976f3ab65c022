package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// emailRepository implements EmailRepository on top of GORM
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a GORM-backed EmailRepository and migrates its table
func NewEmailRepository(db *gorm.DB) (EmailRepository, error) {
	if err := db.AutoMigrate(&emaildomain.Email{}); err != nil {
		return nil, fmt.Errorf("migrate emails: %w", err)
	}
	return &emailRepository{db: db}, nil
}

func (r *emailRepository) Create(ctx context.Context, email *emaildomain.Email) error {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	now := time.Now()
	if email.CreatedAt.IsZero() {
		email.CreatedAt = now
	}
	email.UpdatedAt = now
	return r.db.WithContext(ctx).Create(email).Error
}

func (r *emailRepository) FindByID(ctx context.Context, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) FindByMessageID(ctx context.Context, messageID string) (*emaildomain.Email, error) {
	if messageID == "" {
		return nil, nil
	}
	var email emaildomain.Email
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) Find(ctx context.Context, q EmailQuery) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	query := r.applyFilters(r.db.WithContext(ctx).Model(&emaildomain.Email{}), q)

	switch q.Sort {
	case SortPriority:
		query = query.Order("priority DESC").Order("received_at DESC")
	default:
		query = query.Order("received_at DESC").Order("created_at DESC")
	}
	if q.Skip > 0 {
		query = query.Offset(q.Skip)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	err := query.Find(&emails).Error
	return emails, err
}

func (r *emailRepository) Count(ctx context.Context, q EmailQuery) (int64, error) {
	var total int64
	err := r.applyFilters(r.db.WithContext(ctx).Model(&emaildomain.Email{}), q).Count(&total).Error
	return total, err
}

func (r *emailRepository) Save(ctx context.Context, email *emaildomain.Email) error {
	email.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(email).Error
}

func (r *emailRepository) UpdateByID(ctx context.Context, id string, patch map[string]interface{}) error {
	updates := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		updates[k] = v
	}
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(&emaildomain.Email{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return emaildomain.ErrNotFound
	}
	return nil
}

func (r *emailRepository) CountBy(ctx context.Context, field string) ([]GroupCount, error) {
	if !groupableField(field) {
		return nil, fmt.Errorf("%w: cannot group by %q", emaildomain.ErrValidation, field)
	}
	var rows []GroupCount
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).
		Select(fmt.Sprintf("COALESCE(%s, '') AS key, COUNT(*) AS count", field)).
		Group(field).
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *emailRepository) HourlySeries(ctx context.Context, since time.Time) ([]HourlyCount, error) {
	var rows []HourlyCount
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).
		Select("date_trunc('hour', created_at) AS hour, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("hour").
		Order("hour ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *emailRepository) applyFilters(query *gorm.DB, q EmailQuery) *gorm.DB {
	if len(q.Statuses) > 0 {
		var values []string
		includeUnset := false
		for _, s := range q.Statuses {
			if s == "" {
				includeUnset = true
				continue
			}
			values = append(values, string(s))
		}
		switch {
		case includeUnset && len(values) > 0:
			query = query.Where("(status IN ? OR status IS NULL OR status = '')", values)
		case includeUnset:
			query = query.Where("(status IS NULL OR status = '')")
		default:
			query = query.Where("status IN ?", values)
		}
	}
	if q.Priority != "" {
		query = query.Where("priority = ?", q.Priority)
	}
	if q.Sentiment != "" {
		query = query.Where("sentiment = ?", q.Sentiment)
	}
	if q.IsFiltered != nil {
		query = query.Where("is_filtered = ?", *q.IsFiltered)
	}
	if q.HasDraft {
		query = query.Where("draft_response IS NOT NULL AND TRIM(draft_response) <> ''")
	}
	if q.WithoutDraft {
		query = query.Where("(draft_response IS NULL OR TRIM(draft_response) = '')")
	}
	if q.ReceivedSince != nil {
		query = query.Where("received_at >= ?", *q.ReceivedSince)
	}
	if q.CreatedSince != nil {
		query = query.Where("created_at >= ?", *q.CreatedSince)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		like := "%" + text + "%"
		query = query.Where("(subject ILIKE ? OR \"from\" ILIKE ? OR body_text ILIKE ?)", like, like, like)
	}
	return query
}

func groupableField(field string) bool {
	switch field {
	case FieldStatus, FieldPriority, FieldSentiment:
		return true
	}
	return false
}
