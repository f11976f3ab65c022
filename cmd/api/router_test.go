package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	authRepo "supportdesk-backend/internal/auth/repository"
	authUsecase "supportdesk-backend/internal/auth/usecase"
	emailDelivery "supportdesk-backend/internal/email/delivery"
	emailRepo "supportdesk-backend/internal/email/repository"
	emailUsecase "supportdesk-backend/internal/email/usecase"
	"supportdesk-backend/pkg/chroma"
	"supportdesk-backend/pkg/config"
	"supportdesk-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type stubKB struct {
	mu       sync.Mutex
	snippets []chroma.Snippet
	err      error
}

func (s *stubKB) Upsert(_ context.Context, snippets ...chroma.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snippets = append(s.snippets, snippets...)
	return nil
}

func newTestRouter(t *testing.T, cfg *config.Config, kb SnippetStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := emailRepo.NewMemoryEmailRepository()
	pcfg := emailUsecase.PipelineConfig{BatchLimit: 10}
	processor := emailUsecase.NewEmailProcessor(repo, pcfg, emailUsecase.Capabilities{}, nil)
	sender := emailUsecase.NewReplyDispatcher(repo, pcfg, emailUsecase.Capabilities{}, nil)
	batch := emailUsecase.NewBatchProcessor(repo, processor, pcfg, nil)
	emails := emailUsecase.NewEmailUsecase(repo, processor, emailUsecase.Capabilities{}, nil)
	emailHandler := emailDelivery.NewEmailHandler(emails, processor, sender, batch, "", nil)

	authUc := authUsecase.NewAuthUsecase(authRepo.NewMemoryAgentRepository(), authRepo.NewMemoryDeviceTokenRepository(), cfg)
	h := NewHandler(authUc, emailHandler, processor, kb, sse.NewManager(nil), cfg, nil)
	return h.Router()
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTAccessExpiry: time.Hour, JWTRefreshExpiry: 24 * time.Hour}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	if w := do(r, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}

	// Record at least one request before scraping
	do(r, http.MethodGet, "/api/emails", "")
	w := do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "supportdesk_http_request_duration_seconds") {
		t.Error("metrics output missing http request histogram")
	}
}

func TestAutoSendSettings(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/settings/auto-send", "")
	if !strings.Contains(w.Body.String(), `"autoSendUrgent":false`) {
		t.Fatalf("initial auto-send = %s", w.Body.String())
	}

	w = do(r, http.MethodPut, "/api/settings/auto-send", `{"autoSendUrgent":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/settings/auto-send", "")
	if !strings.Contains(w.Body.String(), `"autoSendUrgent":true`) {
		t.Errorf("auto-send after update = %s", w.Body.String())
	}
}

func TestUpsertSnippets(t *testing.T) {
	tests := []struct {
		name       string
		kb         *stubKB
		body       string
		wantStatus int
		wantStored int
	}{
		{name: "no knowledge base", body: `{"snippets":[{"id":"a","content":"x"}]}`, wantStatus: http.StatusServiceUnavailable},
		{name: "stored", kb: &stubKB{}, body: `{"snippets":[{"id":"refunds","title":"Refunds","content":"Refunds take 5 days."}]}`, wantStatus: http.StatusOK, wantStored: 1},
		{name: "missing content", kb: &stubKB{}, body: `{"snippets":[{"id":"empty"}]}`, wantStatus: http.StatusBadRequest},
		{name: "store failure", kb: &stubKB{err: errors.New("chroma down")}, body: `{"snippets":[{"id":"a","content":"x"}]}`, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kb SnippetStore
			if tt.kb != nil {
				kb = tt.kb
			}
			r := newTestRouter(t, testConfig(), kb)
			w := do(r, http.MethodPost, "/api/kb/snippets", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.kb != nil && len(tt.kb.snippets) != tt.wantStored {
				t.Errorf("stored = %d, want %d", len(tt.kb.snippets), tt.wantStored)
			}
		})
	}
}

func TestAuthEnabledProtectsAPI(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	r := newTestRouter(t, cfg, nil)

	if w := do(r, http.MethodGet, "/api/emails", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should stay public, got %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/auth/register", `{"email":"agent@example.com","password":"secret123","name":"Agent"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &tokens)
	if tokens.AccessToken == "" {
		t.Fatalf("no access token in %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/emails", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
