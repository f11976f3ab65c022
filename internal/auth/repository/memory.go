package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	authdomain "supportdesk-backend/internal/auth/domain"

	"github.com/google/uuid"
)

// MemoryAgentRepository keeps agents in process memory for tests and local runs
type MemoryAgentRepository struct {
	mu     sync.RWMutex
	agents map[string]*authdomain.Agent
	tokens map[string]*authdomain.RefreshToken
}

func NewMemoryAgentRepository() *MemoryAgentRepository {
	return &MemoryAgentRepository{
		agents: make(map[string]*authdomain.Agent),
		tokens: make(map[string]*authdomain.RefreshToken),
	}
}

func (r *MemoryAgentRepository) Create(_ context.Context, agent *authdomain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent.Email = strings.ToLower(agent.Email)
	for _, a := range r.agents {
		if a.Email == agent.Email {
			return authdomain.ErrEmailTaken
		}
	}
	agent.ID = uuid.New().String()
	agent.CreatedAt = now()
	agent.UpdatedAt = agent.CreatedAt
	c := *agent
	r.agents[agent.ID] = &c
	return nil
}

func (r *MemoryAgentRepository) FindByEmail(_ context.Context, email string) (*authdomain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, a := range r.agents {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryAgentRepository) FindByID(_ context.Context, id string) (*authdomain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *MemoryAgentRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.agents)), nil
}

func (r *MemoryAgentRepository) ReplaceRefreshToken(_ context.Context, token *authdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tokens {
		if t.AgentID == token.AgentID && t.ExpiresAt.Before(now()) {
			delete(r.tokens, k)
		}
	}
	c := *token
	r.tokens[token.Token] = &c
	return nil
}

func (r *MemoryAgentRepository) FindRefreshToken(_ context.Context, token string) (*authdomain.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (r *MemoryAgentRepository) DeleteRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

// MemoryDeviceTokenRepository keeps device tokens in process memory
type MemoryDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> agent id
}

func NewMemoryDeviceTokenRepository() *MemoryDeviceTokenRepository {
	return &MemoryDeviceTokenRepository{tokens: make(map[string]string)}
}

func (r *MemoryDeviceTokenRepository) SaveToken(_ context.Context, agentID, token, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = agentID
	return nil
}

func (r *MemoryDeviceTokenRepository) AllTokens(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for t := range r.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryDeviceTokenRepository) DeleteToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}
