package delivery

import (
	"net/http"
	"strings"

	authdomain "supportdesk-backend/internal/auth/domain"
	"supportdesk-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const agentKey = "agent"

// AuthMiddleware requires a valid bearer access token and stores the agent on the context
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "authorization header required"})
			return
		}

		agent, err := authUsecase.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid or expired token"})
			return
		}

		c.Set(agentKey, agent)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter used by EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// CurrentAgent returns the authenticated agent, or nil when auth is disabled
func CurrentAgent(c *gin.Context) *authdomain.Agent {
	v, ok := c.Get(agentKey)
	if !ok {
		return nil
	}
	agent, _ := v.(*authdomain.Agent)
	return agent
}
