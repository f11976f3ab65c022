package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	authUsecase "supportdesk-backend/internal/auth/usecase"
	emailDelivery "supportdesk-backend/internal/email/delivery"
	"supportdesk-backend/pkg/chroma"
	"supportdesk-backend/pkg/config"
	"supportdesk-backend/pkg/sse"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AutoSendToggle exposes the pipeline's runtime auto-send flag
type AutoSendToggle interface {
	AutoSendUrgent() bool
	SetAutoSendUrgent(enabled bool)
}

// SnippetStore accepts knowledge-base articles
type SnippetStore interface {
	Upsert(ctx context.Context, snippets ...chroma.Snippet) error
}

type Handler struct {
	authUsecase  authUsecase.AuthUsecase
	emailHandler *emailDelivery.EmailHandler
	autoSend     AutoSendToggle
	kb           SnippetStore
	sseManager   *sse.Manager
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewHandler wires the HTTP surface. kb may be nil when no knowledge base is configured.
func NewHandler(authUc authUsecase.AuthUsecase, emailHandler *emailDelivery.EmailHandler, autoSend AutoSendToggle, kb SnippetStore, sseManager *sse.Manager, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		authUsecase:  authUc,
		emailHandler: emailHandler,
		autoSend:     autoSend,
		kb:           kb,
		sseManager:   sseManager,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the gin engine with CORS, metrics and all routes
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger), metricsMiddleware())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)
	return r
}

func (h *Handler) Start(addr string) error {
	if h.config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.logger.Info("http server listening", zap.String("addr", addr))
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (h *Handler) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/api/events" {
			return
		}
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
