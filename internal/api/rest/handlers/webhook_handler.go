package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// заголовок с подписью вебхука
const signatureHeader = "X-Signature"

// WebhookHandler обработчик вебхуков платежного шлюза
type WebhookHandler struct {
	payments service.PaymentService
	log      *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(payments service.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		log:      log,
	}
}

// HandleCallback обрабатывает POST /payment-callback.
// Подпись проверяется по сырым байтам тела, поэтому тело читается целиком
// до любого разбора JSON.
func (h *WebhookHandler) HandleCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read webhook body"})
		return
	}

	signature := c.GetHeader(signatureHeader)

	if err := h.payments.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrSignatureMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			respondError(c, h.log, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
