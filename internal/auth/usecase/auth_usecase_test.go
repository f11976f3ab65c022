package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	authdomain "supportdesk-backend/internal/auth/domain"
	authdto "supportdesk-backend/internal/auth/dto"
	"supportdesk-backend/internal/auth/repository"
	"supportdesk-backend/pkg/config"
)

func newTestUsecase() (AuthUsecase, *repository.MemoryDeviceTokenRepository) {
	devices := repository.NewMemoryDeviceTokenRepository()
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  time.Hour,
		JWTRefreshExpiry: 24 * time.Hour,
	}
	return NewAuthUsecase(repository.NewMemoryAgentRepository(), devices, cfg), devices
}

func TestRegisterAndLogin(t *testing.T) {
	uc, _ := newTestUsecase()
	ctx := context.Background()

	first, err := uc.Register(ctx, &authdto.RegisterRequest{Email: "Lead@Example.com", Password: "secret1", Name: "Lead"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if first.Agent.Role != authdomain.RoleAdmin {
		t.Errorf("first agent role = %q, want admin", first.Agent.Role)
	}
	second, err := uc.Register(ctx, &authdto.RegisterRequest{Email: "agent@example.com", Password: "secret2", Name: "Agent"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if second.Agent.Role != authdomain.RoleAgent {
		t.Errorf("second agent role = %q, want agent", second.Agent.Role)
	}

	if _, err := uc.Register(ctx, &authdto.RegisterRequest{Email: "lead@example.com", Password: "secret1", Name: "Dup"}); !errors.Is(err, authdomain.ErrEmailTaken) {
		t.Errorf("duplicate register error = %v, want ErrEmailTaken", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "lead@example.com", password: "secret1"},
		{name: "wrong password", email: "lead@example.com", password: "nope123", wantErr: authdomain.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "secret1", wantErr: authdomain.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := uc.Login(ctx, &authdto.LoginRequest{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			agent, err := uc.ValidateToken(ctx, resp.AccessToken)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if agent.Email != "lead@example.com" {
				t.Errorf("agent email = %q", agent.Email)
			}
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	uc, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Register(ctx, &authdto.RegisterRequest{Email: "a@example.com", Password: "secret1", Name: "A"})
	if err != nil {
		t.Fatal(err)
	}

	refreshed, err := uc.RefreshToken(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if refreshed.Agent.ID != resp.Agent.ID {
		t.Errorf("refreshed agent = %s, want %s", refreshed.Agent.ID, resp.Agent.ID)
	}

	if err := uc.Logout(ctx, resp.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := uc.RefreshToken(ctx, resp.RefreshToken); !errors.Is(err, authdomain.ErrInvalidToken) {
		t.Errorf("refresh after logout error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	uc, _ := newTestUsecase()
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := uc.ValidateToken(context.Background(), token); !errors.Is(err, authdomain.ErrInvalidToken) {
			t.Errorf("ValidateToken(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestRegisterDevice(t *testing.T) {
	uc, devices := newTestUsecase()
	ctx := context.Background()
	if err := uc.RegisterDevice(ctx, "agent-1", &authdto.RegisterDeviceRequest{Token: "fcm-token", DeviceInfo: "firefox"}); err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	tokens, _ := devices.AllTokens(ctx)
	if len(tokens) != 1 || tokens[0] != "fcm-token" {
		t.Errorf("tokens = %v", tokens)
	}
}
