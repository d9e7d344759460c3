package rest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/kafka"
	"github.com/premsagar/subscription-service/internal/metrics"
	"github.com/premsagar/subscription-service/internal/repository"
	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

const (
	testAPISecret     = "test_api_secret"
	testWebhookSecret = "test_webhook_secret"
)

// stubGateway выдает детерминированные order_id
type stubGateway struct {
	calls int
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	g.calls++
	return fmt.Sprintf("order_%03d", g.calls), nil
}

func signHex(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	st := store.NewMemoryStore(log)
	subs := repository.NewStoreSubscriptionRepository(st, log)
	ledger := repository.NewStoreTransactionRepository(st, log)
	bus := service.NewResultBus()

	orders := service.NewOrderService(subs, ledger, &stubGateway{}, metrics.NopMetrics{}, log,
		service.ModeSingle, "INR", domain.DefaultPriceTable(), domain.PlanMonthly)
	payments := service.NewPaymentService(subs, ledger, kafka.NoOpProducer{}, metrics.NopMetrics{}, bus,
		log, []byte(testAPISecret), []byte(testWebhookSecret))

	return SetupRouter(orders, payments, bus, prometheus.NewRegistry(), log)
}

func doJSON(r *gin.Engine, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Uptime  string `json:"uptime"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "subscription-service", resp.Service)
	assert.NotEmpty(t, resp.Uptime)
}

func TestCreateOrderEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order",
		gin.H{"user_id": "user-1", "plan_type": "monthly"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order_001", resp.OrderID)
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"plan_type": "monthly"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/create-order",
		gin.H{"user_id": "user-1", "plan_type": "weekly"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	sig := signHex(testAPISecret, []byte(created.OrderID+"|pay_1"))
	w = doJSON(r, http.MethodPost, "/payment/verify", gin.H{
		"payment_info": gin.H{
			"order_id":   created.OrderID,
			"payment_id": "pay_1",
			"signature":  sig,
		},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	// Подписка видна активной
	w = doJSON(r, http.MethodGet, "/subscriptions/user-1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var sub struct {
		Status string `json:"subscription_status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "active", sub.Status)
}

func TestVerifyPaymentLegacyFieldNames(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	sig := signHex(testAPISecret, []byte(created.OrderID+"|pay_1"))
	w = doJSON(r, http.MethodPost, "/payment/verify", gin.H{
		"payment_info": gin.H{
			"razorpay_order_id":   created.OrderID,
			"razorpay_payment_id": "pay_1",
			"razorpay_signature":  sig,
		},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestVerifyPaymentBadSignatureIsNotAnError(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, "/payment/verify", gin.H{
		"payment_info": gin.H{
			"order_id":   created.OrderID,
			"payment_id": "pay_1",
			"signature":  "deadbeef",
		},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestWebhookEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body := []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":%q,"status":"captured"}}}}`,
		created.OrderID))

	// Вебхук не требует bearer-токена, его аутентифицирует подпись
	req := httptest.NewRequest(http.MethodPost, "/payment-callback", bytes.NewReader(body))
	req.Header.Set("X-Signature", signHex(testWebhookSecret, body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got := doJSON(r, http.MethodGet, "/subscriptions/user-1", nil, true)
	require.Equal(t, http.StatusOK, got.Code)
	var sub struct {
		Status string `json:"subscription_status"`
	}
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &sub))
	assert.Equal(t, "active", sub.Status)
}

func TestWebhookBadSignature(t *testing.T) {
	r := newTestRouter(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)

	req := httptest.NewRequest(http.MethodPost, "/payment-callback", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookMissingSignature(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/payment-callback", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaitResultTimeout(t *testing.T) {
	r := newTestRouter(t)

	start := time.Now()
	w := doJSON(r, http.MethodGet, "/payment/result/order_ghost?timeout=50ms", nil, true)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitResultInvalidTimeout(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/payment/result/order_1?timeout=5h", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/subscriptions/ghost", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// inconsistentOrderService имитирует слой сервисов поверх хранилища,
// не подтвердившего запись контрольным чтением
type inconsistentOrderService struct{}

func (inconsistentOrderService) CreateOrder(ctx context.Context, userID string, plan domain.PlanType) (string, error) {
	return "", domain.NewConsistencyError("subscription", userID, "order_id", "order_1", "")
}

func (inconsistentOrderService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return nil, domain.NewConsistencyError("subscription", userID, "record", "present", "missing")
}

func TestConsistencyFailureMapsToServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	st := store.NewMemoryStore(log)
	subs := repository.NewStoreSubscriptionRepository(st, log)
	ledger := repository.NewStoreTransactionRepository(st, log)
	bus := service.NewResultBus()
	payments := service.NewPaymentService(subs, ledger, kafka.NoOpProducer{}, metrics.NopMetrics{}, bus,
		log, []byte(testAPISecret), []byte(testWebhookSecret))

	r := SetupRouter(inconsistentOrderService{}, payments, bus, prometheus.NewRegistry(), log)

	// Отказ хранилища — это 5xx, а не бизнес-ответ
	w := doJSON(r, http.MethodPost, "/create-order", gin.H{"user_id": "user-1"}, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(r, http.MethodGet, "/subscriptions/user-1", nil, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
