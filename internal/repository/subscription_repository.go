package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

const bucketSubscriptions = "subscriptions"

// SubscriptionRepository интерфейс репозитория подписок
type SubscriptionRepository interface {
	// Create создает новую подписку; ErrDuplicate, если ключ занят
	Create(ctx context.Context, sub *domain.Subscription) error

	// GetByKey возвращает подписку по ключу хранения
	GetByKey(ctx context.Context, key string, mode store.ReadMode) (*domain.Subscription, error)

	// LatestByUserID возвращает самую свежую подписку пользователя
	LatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error)

	// FindByOrderID находит подписку с указанным незакрытым order_id
	FindByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error)

	// AttachOrder записывает order_id платежного намерения на подписку
	AttachOrder(ctx context.Context, sub *domain.Subscription, orderID string, now time.Time) (*domain.Subscription, error)

	// Activate применяет вычисленный переход в active
	Activate(ctx context.Context, sub *domain.Subscription, act domain.Activation, now time.Time) (*domain.Subscription, error)

	// Expire переводит активную подписку в expired
	Expire(ctx context.Context, sub *domain.Subscription, now time.Time) (*domain.Subscription, error)
}

// StoreSubscriptionRepository реализация репозитория подписок поверх RecordStore
type StoreSubscriptionRepository struct {
	store store.RecordStore
	log   *logger.Logger
}

// NewStoreSubscriptionRepository создает новый репозиторий подписок
func NewStoreSubscriptionRepository(st store.RecordStore, log *logger.Logger) *StoreSubscriptionRepository {
	return &StoreSubscriptionRepository{
		store: st,
		log:   log,
	}
}

// Create создает новую подписку
func (r *StoreSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	inserted, err := r.store.PutIfAbsent(ctx, bucketSubscriptions, sub.SubscriptionID, encodeSubscription(sub))
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	if !inserted {
		return domain.ErrDuplicate
	}
	return nil
}

// GetByKey возвращает подписку по ключу хранения
func (r *StoreSubscriptionRepository) GetByKey(ctx context.Context, key string, mode store.ReadMode) (*domain.Subscription, error) {
	rec, ok, err := r.store.Get(ctx, bucketSubscriptions, key, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return decodeSubscription(rec)
}

// LatestByUserID возвращает самую свежую подписку пользователя
func (r *StoreSubscriptionRepository) LatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	recs, err := r.store.Query(ctx, bucketSubscriptions, "user_id", userID, true, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by user: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeSubscription(recs[0])
}

// FindByOrderID находит подписку с указанным незакрытым order_id
func (r *StoreSubscriptionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error) {
	recs, err := r.store.Query(ctx, bucketSubscriptions, "order_id", orderID, true, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by order: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeSubscription(recs[0])
}

// AttachOrder записывает order_id на подписку одним условным обновлением.
// Условие — неизменность updated_at с момента чтения: параллельный
// create-order того же пользователя получит ErrConflict, а не потерянную
// запись. Незакрытый старый order_id при этом затирается намеренно:
// брошенная оплата не должна блокировать новые попытки.
func (r *StoreSubscriptionRepository) AttachOrder(ctx context.Context, sub *domain.Subscription, orderID string, now time.Time) (*domain.Subscription, error) {
	cond := store.Cond{
		"updated_at": sub.UpdatedAt.UTC().Format(timeLayout),
	}
	updates := store.Updates{
		"order_id":            orderID,
		"subscription_status": string(domain.SubscriptionStatusPending),
		"updated_at":          now.UTC().Format(timeLayout),
	}

	applied, err := r.store.Update(ctx, bucketSubscriptions, sub.SubscriptionID, cond, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to attach order: %w", err)
	}
	if !applied {
		return nil, domain.ErrConflict
	}

	return r.verifyWrite(ctx, sub.SubscriptionID, updates)
}

// Activate применяет вычисленный переход в active одним условным
// обновлением. Условие — order_id все еще числится на подписке: повторная
// доставка вебхука после очистки order_id не пройдет условие.
func (r *StoreSubscriptionRepository) Activate(ctx context.Context, sub *domain.Subscription, act domain.Activation, now time.Time) (*domain.Subscription, error) {
	cond := store.Cond{
		"order_id":            sub.OrderID,
		"subscription_status": string(sub.Status),
	}
	start := act.StartDate
	expiry := act.ExpiryDate
	updates := store.Updates{
		"remaining_amount":    act.RemainingAmount.String(),
		"subscription_status": string(domain.SubscriptionStatusActive),
		"start_date":          formatTime(&start),
		"expiry_date":         formatTime(&expiry),
		"order_id":            "", // слот освобождается под следующую покупку, само поле остается
		"subscription_banned": false,
		"updated_at":          now.UTC().Format(timeLayout),
	}

	applied, err := r.store.Update(ctx, bucketSubscriptions, sub.SubscriptionID, cond, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}
	if !applied {
		return nil, domain.ErrConflict
	}

	return r.verifyWrite(ctx, sub.SubscriptionID, updates)
}

// Expire переводит активную подписку в expired
func (r *StoreSubscriptionRepository) Expire(ctx context.Context, sub *domain.Subscription, now time.Time) (*domain.Subscription, error) {
	cond := store.Cond{
		"subscription_status": string(domain.SubscriptionStatusActive),
		"updated_at":          sub.UpdatedAt.UTC().Format(timeLayout),
	}
	updates := store.Updates{
		"subscription_status": string(domain.SubscriptionStatusExpired),
		"updated_at":          now.UTC().Format(timeLayout),
	}

	applied, err := r.store.Update(ctx, bucketSubscriptions, sub.SubscriptionID, cond, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to expire subscription: %w", err)
	}
	if !applied {
		return nil, domain.ErrConflict
	}

	return r.verifyWrite(ctx, sub.SubscriptionID, updates)
}

// verifyWrite перечитывает запись консистентно и сверяет каждое записанное
// поле. Расхождение означает, что хранилище не выполнило запись — это
// жесткая ошибка, а не бизнес-отказ.
func (r *StoreSubscriptionRepository) verifyWrite(ctx context.Context, key string, updates store.Updates) (*domain.Subscription, error) {
	rec, ok, err := r.store.Get(ctx, bucketSubscriptions, key, store.ReadStrong)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read subscription: %w", err)
	}
	if !ok {
		return nil, domain.NewConsistencyError("subscription", key, "record", "present", "missing")
	}

	for field, want := range updates {
		if rec[field] != want {
			r.log.Errorw("Subscription write did not verify",
				"key", key, "field", field, "expected", want, "actual", rec[field])
			return nil, domain.NewConsistencyError("subscription", key, field,
				fmt.Sprintf("%v", want), fmt.Sprintf("%v", rec[field]))
		}
	}

	return decodeSubscription(rec)
}
