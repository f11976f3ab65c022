package usecase

import (
	"context"

	authdomain "supportdesk-backend/internal/auth/domain"
	authdto "supportdesk-backend/internal/auth/dto"
)

// AuthUsecase signs agents in to the dashboard
type AuthUsecase interface {
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authdto.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (*authdomain.Agent, error)
	RegisterDevice(ctx context.Context, agentID string, req *authdto.RegisterDeviceRequest) error
}
