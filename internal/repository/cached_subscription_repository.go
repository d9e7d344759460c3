package repository

import (
	"context"
	"time"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Кеш обслуживает только обычные (eventual) чтения по ключу; консистентные
// чтения и запросы по индексам всегда идут в основное хранилище.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// refresh кеширует свежую версию подписки; ошибки кеша не фатальны
func (r *CachedSubscriptionRepository) refresh(ctx context.Context, sub *domain.Subscription) {
	if sub == nil {
		return
	}
	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription", "error", err, "subscriptionID", sub.SubscriptionID)
	}
}

// Create сохраняет подписку и кеширует ее
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Create(ctx, sub); err != nil {
		return err
	}
	r.refresh(ctx, sub)
	return nil
}

// GetByKey получает подписку (сначала из кеша для eventual-чтений)
func (r *CachedSubscriptionRepository) GetByKey(ctx context.Context, key string, mode store.ReadMode) (*domain.Subscription, error) {
	if mode == store.ReadEventual {
		cached, err := r.cache.GetCachedSubscription(ctx, key)
		if err != nil {
			r.log.Warnw("Error getting subscription from cache", "error", err, "key", key)
		}
		if cached != nil {
			r.log.Debugw("Subscription found in cache", "key", key)
			return cached, nil
		}
	}

	sub, err := r.repo.GetByKey(ctx, key, mode)
	if err != nil {
		return nil, err
	}
	r.refresh(ctx, sub)
	return sub, nil
}

// LatestByUserID проксирует запрос в основное хранилище
func (r *CachedSubscriptionRepository) LatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	return r.repo.LatestByUserID(ctx, userID)
}

// FindByOrderID проксирует запрос в основное хранилище
func (r *CachedSubscriptionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error) {
	return r.repo.FindByOrderID(ctx, orderID)
}

// AttachOrder выполняет запись и обновляет кеш
func (r *CachedSubscriptionRepository) AttachOrder(ctx context.Context, sub *domain.Subscription, orderID string, now time.Time) (*domain.Subscription, error) {
	updated, err := r.repo.AttachOrder(ctx, sub, orderID, now)
	if err != nil {
		return nil, err
	}
	r.refresh(ctx, updated)
	return updated, nil
}

// Activate выполняет запись и обновляет кеш
func (r *CachedSubscriptionRepository) Activate(ctx context.Context, sub *domain.Subscription, act domain.Activation, now time.Time) (*domain.Subscription, error) {
	updated, err := r.repo.Activate(ctx, sub, act, now)
	if err != nil {
		return nil, err
	}
	r.refresh(ctx, updated)
	return updated, nil
}

// Expire выполняет запись и обновляет кеш
func (r *CachedSubscriptionRepository) Expire(ctx context.Context, sub *domain.Subscription, now time.Time) (*domain.Subscription, error) {
	updated, err := r.repo.Expire(ctx, sub, now)
	if err != nil {
		return nil, err
	}
	r.refresh(ctx, updated)
	return updated, nil
}
