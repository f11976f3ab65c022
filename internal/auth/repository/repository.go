package repository

import (
	"context"
	"time"

	authdomain "supportdesk-backend/internal/auth/domain"

	"golang.org/x/crypto/bcrypt"
)

// AgentRepository stores dashboard agents and their refresh tokens
type AgentRepository interface {
	Create(ctx context.Context, agent *authdomain.Agent) error
	// FindByEmail returns nil, nil when no agent has the address
	FindByEmail(ctx context.Context, email string) (*authdomain.Agent, error)
	FindByID(ctx context.Context, id string) (*authdomain.Agent, error)
	Count(ctx context.Context) (int64, error)
	// ReplaceRefreshToken stores a new refresh token and drops the agent's expired ones
	ReplaceRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

// DeviceTokenRepository stores push notification tokens of agent browsers
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, agentID, token, deviceInfo string) error
	AllTokens(ctx context.Context) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}

var now = time.Now

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
