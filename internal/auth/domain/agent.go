package domain

import (
	"errors"
	"time"
)

const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Agent is a support desk operator who signs in to the dashboard
type Agent struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-"` // Never return password in JSON
	Name      string    `json:"name"`
	Role      string    `json:"role" gorm:"default:agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Agent) TableName() string {
	return "agents"
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	AgentID   string    `json:"agent_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeviceToken is a Firebase Cloud Messaging token registered by an agent's browser
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	AgentID    string    `json:"agent_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
