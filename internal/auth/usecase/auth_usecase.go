package usecase

import (
	"context"
	"fmt"
	"time"

	authdomain "supportdesk-backend/internal/auth/domain"
	authdto "supportdesk-backend/internal/auth/dto"
	"supportdesk-backend/internal/auth/repository"
	"supportdesk-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	agentRepo  repository.AgentRepository
	deviceRepo repository.DeviceTokenRepository
	config     *config.Config
	now        func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(agentRepo repository.AgentRepository, deviceRepo repository.DeviceTokenRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		agentRepo:  agentRepo,
		deviceRepo: deviceRepo,
		config:     cfg,
		now:        time.Now,
	}
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	agent, err := u.agentRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if agent == nil || !repository.CheckPasswordHash(req.Password, agent.Password) {
		return nil, authdomain.ErrInvalidCredentials
	}
	return u.generateTokens(ctx, agent)
}

// Register creates an agent account. The first account becomes an admin.
func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.agentRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, authdomain.ErrEmailTaken
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := authdomain.RoleAgent
	if n, err := u.agentRepo.Count(ctx); err == nil && n == 0 {
		role = authdomain.RoleAdmin
	}
	agent := &authdomain.Agent{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     req.Name,
		Role:     role,
	}
	if err := u.agentRepo.Create(ctx, agent); err != nil {
		return nil, err
	}
	return u.generateTokens(ctx, agent)
}

func (u *authUsecase) RefreshToken(ctx context.Context, refreshToken string) (*authdto.TokenResponse, error) {
	claims, err := u.parse(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := u.agentRepo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ExpiresAt.Before(u.now()) {
		return nil, fmt.Errorf("%w: refresh token expired", authdomain.ErrInvalidToken)
	}

	agent, err := u.agentFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	return u.generateTokens(ctx, agent)
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	return u.agentRepo.DeleteRefreshToken(ctx, refreshToken)
}

func (u *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*authdomain.Agent, error) {
	claims, err := u.parse(tokenString)
	if err != nil {
		return nil, err
	}
	return u.agentFromClaims(ctx, claims)
}

func (u *authUsecase) RegisterDevice(ctx context.Context, agentID string, req *authdto.RegisterDeviceRequest) error {
	if u.deviceRepo == nil {
		return nil
	}
	return u.deviceRepo.SaveToken(ctx, agentID, req.Token, req.DeviceInfo)
}

func (u *authUsecase) generateTokens(ctx context.Context, agent *authdomain.Agent) (*authdto.TokenResponse, error) {
	accessToken, err := u.sign(jwt.MapClaims{
		"agent_id": agent.ID,
		"email":    agent.Email,
		"role":     agent.Role,
		"exp":      u.now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":      u.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.sign(jwt.MapClaims{
		"agent_id": agent.ID,
		"token_id": uuid.New().String(),
		"exp":      u.now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      u.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	err = u.agentRepo.ReplaceRefreshToken(ctx, &authdomain.RefreshToken{
		Token:     refreshToken,
		AgentID:   agent.ID,
		ExpiresAt: u.now().Add(u.config.JWTRefreshExpiry),
	})
	if err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Agent:        agent,
	}, nil
}

func (u *authUsecase) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, authdomain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authdomain.ErrInvalidToken
	}
	return claims, nil
}

func (u *authUsecase) agentFromClaims(ctx context.Context, claims jwt.MapClaims) (*authdomain.Agent, error) {
	agentID, ok := claims["agent_id"].(string)
	if !ok {
		return nil, authdomain.ErrInvalidToken
	}

	agent, err := u.agentRepo.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent not found", authdomain.ErrInvalidToken)
	}
	return agent, nil
}
