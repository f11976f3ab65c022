package api

import (
	"net/http"
	"strconv"
	"time"

	"supportdesk-backend/internal/auth/delivery"
	"supportdesk-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	authHandler := delivery.NewAuthHandler(h.authUsecase)
	emailHandler := h.emailHandler

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": "ok", "time": time.Now().UTC()})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(h.authUsecase), authHandler.Me)
			auth.POST("/devices", delivery.AuthMiddleware(h.authUsecase), authHandler.RegisterDevice)
		}

		protected := api.Group("")
		if h.config.AuthEnabled {
			protected.Use(delivery.AuthMiddleware(h.authUsecase))
		}

		// SSE endpoint
		protected.GET("/events", h.sseManager.ServeHTTP)

		protected.GET("/fetch-mails", emailHandler.FetchMails)
		protected.GET("/fetch-and-process", emailHandler.FetchAndProcess)
		protected.POST("/process-pending", emailHandler.ProcessPending)
		protected.POST("/sample/load", emailHandler.LoadSample)

		// Email routes
		emails := protected.Group("/emails")
		{
			emails.GET("", emailHandler.ListEmails)
			emails.POST("", emailHandler.CreateEmail)
			emails.GET("/search", emailHandler.Search)
			emails.POST("/send-pending", emailHandler.SendPending)
			emails.GET("/:id", emailHandler.GetEmail)
			emails.POST("/:id/process", emailHandler.ProcessEmail)
			emails.POST("/:id/send", emailHandler.SendReply)
			emails.POST("/:id/status", emailHandler.UpdateStatus)
		}

		stats := protected.Group("/stats")
		{
			stats.GET("/summary", emailHandler.StatsSummary)
			stats.GET("/last24h", emailHandler.Last24h)
		}

		protected.POST("/kb/snippets", h.UpsertSnippets)

		// Settings routes - Runtime configuration
		settings := protected.Group("/settings")
		{
			settings.GET("/auto-send", h.GetAutoSend)
			settings.PUT("/auto-send", h.UpdateAutoSend)
			settings.GET("/ollama", GetOllamaSettings)
			settings.PUT("/ollama", UpdateOllamaSettings)
			settings.POST("/ollama/test", TestOllamaConnection)
		}
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/api/events" || path == "/metrics" {
			return
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
