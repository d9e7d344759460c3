package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// respondError переводит ошибку доменной таксономии в HTTP-статус.
// Бизнес-отказы не доходят сюда — они возвращаются как обычные ответы.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var consistencyErr *domain.ConsistencyError

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, retry the request"})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		// Состояние не менялось до вызова шлюза, запрос можно повторить целиком
		log.Errorw("Gateway call failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
	case errors.As(err, &consistencyErr):
		log.Errorw("Store write did not verify", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage consistency failure"})
	case errors.Is(err, domain.ErrSecretNotConfigured):
		log.Errorw("Gateway secret is not configured", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "service misconfigured"})
	default:
		log.Errorw("Internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
