package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/premsagar/subscription-service/pkg/logger"
)

// ContextKey тип для ключей контекста во избежание коллизий
type ContextKey string

const (
	// ContextUserTokenKey ключ, под которым токен пользователя лежит в контексте Gin
	ContextUserTokenKey = "userToken"
	authHeaderPrefix    = "Bearer "
)

// ExtractBearerToken извлекает bearer-токен из заголовка Authorization.
// Токен не разбирается и не валидируется, он прозрачно передается дальше;
// требуется только его наличие.
func ExtractBearerToken(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, authHeaderPrefix) {
			log.Warnw("Request without bearer token", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing authorization token"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing authorization token"})
			return
		}

		c.Set(ContextUserTokenKey, token)
		c.Next()
	}
}
