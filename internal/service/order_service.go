package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/gateway/razorpay"
	"github.com/premsagar/subscription-service/internal/metrics"
	"github.com/premsagar/subscription-service/internal/repository"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// Mode режим продукта: одна подписка на пользователя либо несколько
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// OrderService интерфейс сервиса платежных намерений
type OrderService interface {
	// CreateOrder создает платежный ордер шлюза для подписки пользователя.
	// Незакрытый старый ордер заменяется новым: брошенная оплата не должна
	// навсегда блокировать повторные попытки.
	CreateOrder(ctx context.Context, userID string, plan domain.PlanType) (string, error)

	// GetSubscription возвращает текущую подписку пользователя,
	// попутно переводя просроченную active-подписку в expired
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}

// orderService реализация OrderService
type orderService struct {
	subs        repository.SubscriptionRepository
	ledger      repository.TransactionRepository
	gateway     razorpay.Client
	metrics     metrics.PaymentMetrics
	log         *logger.Logger
	mode        Mode
	currency    string
	prices      domain.PriceTable
	defaultPlan domain.PlanType
	now         func() time.Time
}

// NewOrderService создает новый сервис платежных намерений
func NewOrderService(
	subs repository.SubscriptionRepository,
	ledger repository.TransactionRepository,
	gateway razorpay.Client,
	m metrics.PaymentMetrics,
	log *logger.Logger,
	mode Mode,
	currency string,
	prices domain.PriceTable,
	defaultPlan domain.PlanType,
) OrderService {
	return &orderService{
		subs:        subs,
		ledger:      ledger,
		gateway:     gateway,
		metrics:     m,
		log:         log,
		mode:        mode,
		currency:    currency,
		prices:      prices,
		defaultPlan: defaultPlan,
		now:         time.Now,
	}
}

// CreateOrder создает платежный ордер для подписки пользователя
func (s *orderService) CreateOrder(ctx context.Context, userID string, plan domain.PlanType) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if plan == "" {
		plan = s.defaultPlan
	}
	if !plan.Valid() {
		return "", fmt.Errorf("%w: unknown plan type %q", domain.ErrInvalidInput, plan)
	}

	sub, err := s.lookupOrCreate(ctx, userID, plan)
	if err != nil {
		return "", err
	}

	amountMinor, err := domain.MinorUnits(sub.CreditAmount)
	if err != nil {
		return "", err
	}

	// Сначала шлюз, потом хранилище: упавший вызов шлюза оставляет
	// состояние нетронутым, и весь запрос можно безопасно повторить
	receipt := uuid.NewString()
	orderID, err := s.gateway.CreateOrder(ctx, amountMinor, s.currency, receipt)
	if err != nil {
		return "", err
	}

	if sub.HasOutstandingOrder() {
		s.log.Infow("Replacing stale outstanding order",
			"userID", userID, "staleOrderID", sub.OrderID, "orderID", orderID)
	}

	now := s.now()
	updated, err := s.subs.AttachOrder(ctx, sub, orderID, now)
	if err != nil {
		return "", err
	}

	if err := s.ledger.RecordPending(ctx, orderID, userID, updated.SubscriptionID, now); err != nil {
		return "", err
	}

	s.metrics.IncOrderCreated(string(updated.PlanType))
	s.metrics.ObserveOrderAmount(float64(amountMinor), s.currency)
	s.log.Infow("Order created", "userID", userID, "orderID", orderID,
		"subscriptionID", updated.SubscriptionID, "amountMinor", amountMinor)

	return orderID, nil
}

// lookupOrCreate находит подписку пользователя либо создает новую pending
func (s *orderService) lookupOrCreate(ctx context.Context, userID string, plan domain.PlanType) (*domain.Subscription, error) {
	var (
		sub *domain.Subscription
		err error
	)
	if s.mode == ModeMulti {
		sub, err = s.subs.LatestByUserID(ctx, userID)
	} else {
		sub, err = s.subs.GetByKey(ctx, userID, store.ReadStrong)
	}
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	credit, err := s.prices.Amount(plan)
	if err != nil {
		return nil, err
	}

	// В режиме одной подписки на пользователя ключ хранения — сам user_id
	key := userID
	if s.mode == ModeMulti {
		key = uuid.NewString()
	}

	now := s.now()
	created := domain.NewPendingSubscription(key, userID, plan, credit, now)
	if err := s.subs.Create(ctx, created); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Параллельный create-order успел первым, берем его запись
			return s.subs.GetByKey(ctx, key, store.ReadStrong)
		}
		return nil, err
	}
	s.log.Infow("Created new pending subscription", "userID", userID, "subscriptionID", key, "plan", plan)

	// Перечитываем консистентно и убеждаемся, что запись закрепилась
	return s.subs.GetByKey(ctx, key, store.ReadStrong)
}

// GetSubscription возвращает текущую подписку пользователя
func (s *orderService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	var (
		sub *domain.Subscription
		err error
	)
	if s.mode == ModeMulti {
		sub, err = s.subs.LatestByUserID(ctx, userID)
	} else {
		sub, err = s.subs.GetByKey(ctx, userID, store.ReadEventual)
	}
	if err != nil {
		return nil, err
	}

	// Ленивый перевод просроченной подписки в expired
	now := s.now()
	if sub.Status == domain.SubscriptionStatusActive && sub.ExpiredAt(now) {
		expired, err := s.subs.Expire(ctx, sub, now)
		if err == nil {
			return expired, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			// Кто-то успел изменить запись параллельно, отдаем свежую версию
			return s.subs.GetByKey(ctx, sub.SubscriptionID, store.ReadStrong)
		}
		return nil, err
	}

	return sub, nil
}
