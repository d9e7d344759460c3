package razorpay

import (
	"context"
	"errors"
	"time"

	razorpaygo "github.com/razorpay/razorpay-go"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// Client определяет методы взаимодействия с платежным шлюзом.
// Сумма передается уже в минимальных единицах валюты.
type Client interface {
	// CreateOrder создает платежный ордер и возвращает его id
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
}

// razorpayClient реализует интерфейс Client поверх официального SDK
type razorpayClient struct {
	client  *razorpaygo.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewClient создает новый экземпляр клиента шлюза
func NewClient(keyID, keySecret string, timeout time.Duration, log *logger.Logger) Client {
	return &razorpayClient{
		client:  razorpaygo.NewClient(keyID, keySecret),
		timeout: timeout,
		log:     log,
	}
}

// CreateOrder создает платежный ордер. SDK не принимает context, поэтому
// вызов выполняется в горутине под дедлайном: подвисший шлюз не должен
// держать обработчик запроса.
func (c *razorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}

	type orderResult struct {
		body map[string]interface{}
		err  error
	}
	resultCh := make(chan orderResult, 1)

	go func() {
		body, err := c.client.Order.Create(data, nil)
		resultCh <- orderResult{body: body, err: err}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case <-callCtx.Done():
		c.log.Errorw("Gateway order creation timed out", "error", callCtx.Err())
		return "", domain.NewUpstreamError("order.create", callCtx.Err())
	case res := <-resultCh:
		if res.err != nil {
			c.log.Errorw("Gateway order creation failed", "error", res.err)
			return "", domain.NewUpstreamError("order.create", res.err)
		}
		orderID, ok := res.body["id"].(string)
		if !ok || orderID == "" {
			return "", domain.NewUpstreamError("order.create", errors.New("gateway response has no order id"))
		}
		c.log.Infow("Gateway order created", "orderID", orderID, "amountMinor", amountMinor, "currency", currency)
		return orderID, nil
	}
}
