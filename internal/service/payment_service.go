package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/gateway/razorpay"
	"github.com/premsagar/subscription-service/internal/kafka"
	"github.com/premsagar/subscription-service/internal/metrics"
	"github.com/premsagar/subscription-service/internal/repository"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// События вебхука, которые сервис обрабатывает
const (
	webhookEventPaymentCaptured = "payment.captured"
	webhookEventPaymentFailed   = "payment.failed"
)

// webhookEvent разобранное тело вебхука шлюза. Разбор выполняется только
// после проверки подписи по сырым байтам.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentService интерфейс проверки платежей и продвижения подписки
type PaymentService interface {
	// VerifyPayment обрабатывает подтверждение из клиентского редиректа.
	// false без ошибки — подпись не сошлась (ожидаемый исход).
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (bool, error)

	// HandleWebhook обрабатывает асинхронное уведомление шлюза:
	// сырые байты тела плюс значение заголовка подписи
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// paymentService реализация PaymentService
type paymentService struct {
	subs          repository.SubscriptionRepository
	ledger        repository.TransactionRepository
	producer      kafka.Producer
	metrics       metrics.PaymentMetrics
	bus           *ResultBus
	log           *logger.Logger
	apiSecret     []byte
	webhookSecret []byte
	now           func() time.Time
}

// NewPaymentService создает новый сервис проверки платежей
func NewPaymentService(
	subs repository.SubscriptionRepository,
	ledger repository.TransactionRepository,
	producer kafka.Producer,
	m metrics.PaymentMetrics,
	bus *ResultBus,
	log *logger.Logger,
	apiSecret, webhookSecret []byte,
) PaymentService {
	return &paymentService{
		subs:          subs,
		ledger:        ledger,
		producer:      producer,
		metrics:       m,
		bus:           bus,
		log:           log,
		apiSecret:     apiSecret,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// VerifyPayment обрабатывает подтверждение из клиентского редиректа
func (s *paymentService) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false, fmt.Errorf("%w: order_id, payment_id and signature are required", domain.ErrInvalidInput)
	}
	if len(s.apiSecret) == 0 {
		return false, domain.ErrSecretNotConfigured
	}

	if !razorpay.VerifyPaymentSignature(orderID, paymentID, signature, s.apiSecret) {
		s.metrics.IncVerification("redirect", "mismatch")
		s.log.Warnw("Payment signature mismatch", "orderID", orderID, "paymentID", paymentID)
		s.recordFailure(ctx, orderID)
		return false, nil
	}

	s.metrics.IncVerification("redirect", "verified")
	return s.settleVerifiedPayment(ctx, orderID, paymentID)
}

// HandleWebhook обрабатывает асинхронное уведомление шлюза
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: signature header is missing", domain.ErrInvalidInput)
	}
	if len(s.webhookSecret) == 0 {
		return domain.ErrSecretNotConfigured
	}

	if !razorpay.VerifyWebhookSignature(body, signature, s.webhookSecret) {
		s.metrics.IncVerification("webhook", "mismatch")
		// Тело не прошло проверку, но order_id из него годится, чтобы
		// отметить отказ в журнале: закрыть можно только pending-запись
		var event webhookEvent
		if err := json.Unmarshal(body, &event); err == nil && event.Payload.Payment.Entity.OrderID != "" {
			s.recordFailure(ctx, event.Payload.Payment.Entity.OrderID)
		}
		s.log.Warnw("Webhook signature mismatch")
		return domain.ErrSignatureMismatch
	}

	s.metrics.IncVerification("webhook", "verified")

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: malformed webhook body: %v", domain.ErrInvalidInput, err)
	}

	entity := event.Payload.Payment.Entity
	switch event.Event {
	case webhookEventPaymentCaptured:
		if entity.OrderID == "" || entity.ID == "" {
			return fmt.Errorf("%w: webhook payload has no order or payment id", domain.ErrInvalidInput)
		}
		_, err := s.settleVerifiedPayment(ctx, entity.OrderID, entity.ID)
		return err
	case webhookEventPaymentFailed:
		if entity.OrderID != "" {
			s.recordFailure(ctx, entity.OrderID)
		}
		return nil
	default:
		s.log.Debugw("Ignoring webhook event", "event", event.Event)
		return nil
	}
}

// settleVerifiedPayment закрывает журнал успехом и продвигает подписку.
// Идемпотентно: повторная доставка того же order_id видит уже закрытую
// запись журнала и ничего не меняет.
func (s *paymentService) settleVerifiedPayment(ctx context.Context, orderID, paymentID string) (bool, error) {
	now := s.now()

	prev, err := s.ledger.Finalize(ctx, orderID, domain.TransactionStatusSuccess, paymentID, now)
	if err != nil {
		return false, err
	}

	switch prev {
	case domain.TransactionStatusSuccess:
		// Дубликат доставки: подписка уже продвинута, срок повторно не продлеваем
		s.log.Infow("Duplicate payment confirmation, no-op", "orderID", orderID)
		s.bus.Publish(PaymentResult{OrderID: orderID, Success: true, PaymentID: paymentID})
		return true, nil
	case domain.TransactionStatusFailed:
		// Первый зафиксированный исход победил, успех поверх отказа не пишем
		s.log.Warnw("Payment confirmation for already failed transaction", "orderID", orderID)
		return false, nil
	}

	tx, err := s.ledger.Get(ctx, orderID, store.ReadStrong)
	if err != nil {
		return false, err
	}

	sub, err := s.subs.GetByKey(ctx, tx.SubscriptionID, store.ReadStrong)
	if err != nil {
		return false, err
	}

	if sub.OrderID != orderID {
		// Ордер уже заменен новым платежным намерением; платеж остается
		// в журнале со статусом success для ручной сверки
		s.log.Warnw("Verified payment does not match outstanding order, skipping activation",
			"orderID", orderID, "outstandingOrderID", sub.OrderID, "subscriptionID", sub.SubscriptionID)
		return false, nil
	}

	act, err := sub.ComputeActivation(now)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionBanned) {
			s.log.Warnw("Activation suppressed for banned subscription",
				"subscriptionID", sub.SubscriptionID, "orderID", orderID)
			return false, nil
		}
		return false, err
	}

	updated, err := s.subs.Activate(ctx, sub, act, now)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Параллельная доставка успела продвинуть подписку первой
			s.log.Infow("Subscription already advanced by concurrent delivery", "orderID", orderID)
			s.bus.Publish(PaymentResult{OrderID: orderID, Success: true, PaymentID: paymentID})
			return true, nil
		}
		return false, err
	}

	s.metrics.IncActivation(string(updated.PlanType), act.Renewal)
	s.publishEvent(ctx, kafka.TopicSubscriptionActivated, kafka.PaymentEvent{
		OrderID:        orderID,
		UserID:         updated.UserID,
		SubscriptionID: updated.SubscriptionID,
		PlanType:       string(updated.PlanType),
		Amount:         updated.CreditAmount.String(),
		OccurredAt:     now,
	})
	s.bus.Publish(PaymentResult{OrderID: orderID, Success: true, PaymentID: paymentID})

	s.log.Infow("Payment verified, subscription advanced",
		"orderID", orderID, "subscriptionID", updated.SubscriptionID,
		"status", updated.Status, "expiryDate", updated.ExpiryDate, "renewal", act.Renewal)

	return true, nil
}

// recordFailure отмечает отказ в журнале и оповещает ожидающих.
// Отсутствие записи журнала не ошибка: отказ мог прийти по чужому order_id.
func (s *paymentService) recordFailure(ctx context.Context, orderID string) {
	now := s.now()
	prev, err := s.ledger.Finalize(ctx, orderID, domain.TransactionStatusFailed, "", now)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Errorw("Failed to record payment failure", "error", err, "orderID", orderID)
		}
		return
	}
	if prev != domain.TransactionStatusPending {
		return
	}

	tx, err := s.ledger.Get(ctx, orderID, store.ReadEventual)
	if err == nil {
		s.publishEvent(ctx, kafka.TopicPaymentFailed, kafka.PaymentEvent{
			OrderID:        orderID,
			UserID:         tx.UserID,
			SubscriptionID: tx.SubscriptionID,
			OccurredAt:     now,
		})
	}
	s.bus.Publish(PaymentResult{OrderID: orderID, Success: false})
}

// publishEvent публикует событие в Kafka; сбой публикации не валит платеж
func (s *paymentService) publishEvent(ctx context.Context, topic string, event kafka.PaymentEvent) {
	if err := s.producer.PublishPaymentEvent(ctx, topic, event); err != nil {
		s.log.Errorw("Failed to publish payment event", "error", err, "topic", topic, "orderID", event.OrderID)
	}
}
