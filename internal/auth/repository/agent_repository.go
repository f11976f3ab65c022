package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authdomain "supportdesk-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// agentRepository implements AgentRepository interface
type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository migrates the auth tables and returns a gorm-backed repository
func NewAgentRepository(db *gorm.DB) (AgentRepository, error) {
	if err := db.AutoMigrate(&authdomain.Agent{}, &authdomain.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("migrate agents: %w", err)
	}
	return &agentRepository{db: db}, nil
}

func (r *agentRepository) Create(ctx context.Context, agent *authdomain.Agent) error {
	agent.ID = uuid.New().String()
	agent.Email = strings.ToLower(agent.Email)
	agent.CreatedAt = now()
	agent.UpdatedAt = agent.CreatedAt
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *agentRepository) FindByEmail(ctx context.Context, email string) (*authdomain.Agent, error) {
	var agent authdomain.Agent
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) FindByID(ctx context.Context, id string) (*authdomain.Agent, error) {
	var agent authdomain.Agent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&authdomain.Agent{}).Count(&n).Error
	return n, err
}

// ReplaceRefreshToken adds a new refresh token without touching the agent's other
// valid tokens, so every device keeps its own session.
func (r *agentRepository) ReplaceRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("agent_id = ? AND expires_at < ?", token.AgentID, now()).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
}

func (r *agentRepository) FindRefreshToken(ctx context.Context, token string) (*authdomain.RefreshToken, error) {
	var refreshToken authdomain.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refreshToken, nil
}

func (r *agentRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
}

// deviceTokenRepository implements DeviceTokenRepository interface
type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) (DeviceTokenRepository, error) {
	if err := db.AutoMigrate(&authdomain.DeviceToken{}); err != nil {
		return nil, fmt.Errorf("migrate device tokens: %w", err)
	}
	return &deviceTokenRepository{db: db}, nil
}

// SaveToken saves or updates a device token (atomic upsert)
func (r *deviceTokenRepository) SaveToken(ctx context.Context, agentID, token, deviceInfo string) error {
	t := &authdomain.DeviceToken{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now(),
		UpdatedAt:  now(),
	}

	// INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"agent_id", "device_info", "updated_at"}),
	}).Create(t).Error
}

func (r *deviceTokenRepository) AllTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&authdomain.DeviceToken{}).Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
}
