package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	emaildto "supportdesk-backend/internal/email/dto"
	"supportdesk-backend/pkg/chroma"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RuntimeConfig holds runtime-configurable settings
type RuntimeConfig struct {
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

var (
	runtimeConfig     RuntimeConfig
	runtimeConfigLock sync.RWMutex
)

var ollamaProbeClient = &http.Client{Timeout: 5 * time.Second}

// InitRuntimeConfig initializes runtime config from static config
func InitRuntimeConfig(ollamaBaseURL, ollamaModel string) {
	runtimeConfigLock.Lock()
	defer runtimeConfigLock.Unlock()
	runtimeConfig = RuntimeConfig{
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,
	}
}

// GetRuntimeOllamaBaseURL returns the current runtime Ollama base URL
func GetRuntimeOllamaBaseURL() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaBaseURL
}

// GetRuntimeOllamaModel returns the current runtime Ollama model
func GetRuntimeOllamaModel() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaModel
}

// GetAutoSend GET /api/settings/auto-send
func (h *Handler) GetAutoSend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "autoSendUrgent": h.autoSend.AutoSendUrgent()})
}

// UpdateAutoSend PUT /api/settings/auto-send
func (h *Handler) UpdateAutoSend(c *gin.Context) {
	var req emaildto.AutoSendSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.autoSend.SetAutoSendUrgent(req.AutoSendUrgent)
	h.logger.Info("auto-send urgent updated", zap.Bool("enabled", req.AutoSendUrgent))
	c.JSON(http.StatusOK, gin.H{"ok": true, "autoSendUrgent": h.autoSend.AutoSendUrgent()})
}

type upsertSnippetsRequest struct {
	Snippets []chroma.Snippet `json:"snippets" binding:"required"`
}

// UpsertSnippets adds or replaces knowledge-base articles
// POST /api/kb/snippets
func (h *Handler) UpsertSnippets(c *gin.Context) {
	if h.kb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "knowledge base is not configured"})
		return
	}
	var req upsertSnippetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	for _, s := range req.Snippets {
		if err := s.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}
	if err := h.kb.Upsert(c.Request.Context(), req.Snippets...); err != nil {
		h.logger.Error("knowledge base upsert failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "upserted": len(req.Snippets)})
}

// UpdateOllamaSettingsRequest represents the request body for updating Ollama settings
type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetOllamaSettings returns current Ollama configuration
// GET /api/settings/ollama
func GetOllamaSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"ollama_base_url": GetRuntimeOllamaBaseURL(),
		"ollama_model":    GetRuntimeOllamaModel(),
	})
}

// UpdateOllamaSettings updates Ollama configuration at runtime
// PUT /api/settings/ollama
func UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !strings.HasPrefix(req.OllamaBaseURL, "http://") && !strings.HasPrefix(req.OllamaBaseURL, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "ollama_base_url must be an http(s) URL"})
		return
	}

	runtimeConfigLock.Lock()
	runtimeConfig.OllamaBaseURL = strings.TrimRight(req.OllamaBaseURL, "/")
	if req.OllamaModel != "" {
		runtimeConfig.OllamaModel = req.OllamaModel
	}
	runtimeConfigLock.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"ollama_base_url": GetRuntimeOllamaBaseURL(),
		"ollama_model":    GetRuntimeOllamaModel(),
	})
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// No body means test the current config
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = GetRuntimeOllamaBaseURL()
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, strings.TrimRight(req.OllamaBaseURL, "/")+"/api/tags", nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "connected": false, "error": err.Error()})
		return
	}
	resp, err := ollamaProbeClient.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ok":        false,
			"connected": false,
			"error":     err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ok":          false,
			"connected":   false,
			"status_code": resp.StatusCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}
