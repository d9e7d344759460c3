package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// максимальное время ожидания результата платежа long-poll запросом
const maxResultWait = 60 * time.Second

// PaymentHandler обработчик проверки платежей
type PaymentHandler struct {
	payments service.PaymentService
	bus      *service.ResultBus
	log      *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(payments service.PaymentService, bus *service.ResultBus, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		bus:      bus,
		log:      log,
	}
}

// paymentInfo данные подтверждения платежа из клиентского редиректа.
// Старые клиенты шлют поля с префиксом razorpay_, поддерживаются оба имени.
type paymentInfo struct {
	OrderID           string `json:"order_id"`
	PaymentID         string `json:"payment_id"`
	Signature         string `json:"signature"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (p *paymentInfo) normalize() (orderID, paymentID, signature string) {
	orderID = p.OrderID
	if orderID == "" {
		orderID = p.RazorpayOrderID
	}
	paymentID = p.PaymentID
	if paymentID == "" {
		paymentID = p.RazorpayPaymentID
	}
	signature = p.Signature
	if signature == "" {
		signature = p.RazorpaySignature
	}
	return orderID, paymentID, signature
}

// verifyPaymentRequest тело запроса проверки платежа
type verifyPaymentRequest struct {
	PaymentInfo *paymentInfo `json:"payment_info"`
}

// VerifyPayment обрабатывает POST /payment/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentInfo == nil {
		h.log.Warnw("Verify request without payment_info")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing payment_info"})
		return
	}

	orderID, paymentID, signature := req.PaymentInfo.normalize()
	if orderID == "" || paymentID == "" || signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required payment details"})
		return
	}

	ok, err := h.payments.VerifyPayment(c.Request.Context(), orderID, paymentID, signature)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if !ok {
		// Несошедшаяся подпись — ожидаемый исход, не ошибка сервера
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "payment verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "payment verified, subscription updated"})
}

// WaitResult обрабатывает GET /payment/result/:order_id — long-poll
// ожидание исхода платежа по шине результатов
func (h *PaymentHandler) WaitResult(c *gin.Context) {
	orderID := c.Param("order_id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	wait := 30 * time.Second
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxResultWait {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		wait = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	result, err := h.bus.Wait(ctx, orderID)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "no payment result within timeout"})
			return
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
