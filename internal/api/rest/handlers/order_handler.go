package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// OrderHandler обработчик создания платежных ордеров
type OrderHandler struct {
	orders service.OrderService
	log    *logger.Logger
}

// NewOrderHandler создает новый обработчик ордеров
func NewOrderHandler(orders service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		log:    log,
	}
}

// createOrderRequest тело запроса создания ордера
type createOrderRequest struct {
	UserID   string `json:"user_id"`
	PlanType string `json:"plan_type"`
}

// CreateOrder обрабатывает POST /create-order
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		h.log.Warnw("Create order request without user_id")
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required in the request payload"})
		return
	}

	orderID, err := h.orders.CreateOrder(c.Request.Context(), req.UserID, domain.PlanType(req.PlanType))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"message":  "order created and subscription updated successfully",
	})
}

// GetSubscription обрабатывает GET /subscriptions/:user_id
func (h *OrderHandler) GetSubscription(c *gin.Context) {
	userID := c.Param("user_id")

	sub, err := h.orders.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}
