package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/store"
)

// corruptingStore имитирует хранилище, которое подтверждает условное
// обновление, но на деле записывает в одно из полей мусор. Контрольное
// чтение репозитория обязано это поймать.
type corruptingStore struct {
	store.RecordStore
	field string
	value any
}

func (s *corruptingStore) Update(ctx context.Context, bucket, key string, cond store.Cond, updates store.Updates) (bool, error) {
	applied, err := s.RecordStore.Update(ctx, bucket, key, cond, updates)
	if err != nil || !applied {
		return applied, err
	}
	if _, touched := updates[s.field]; touched {
		_, _ = s.RecordStore.Update(ctx, bucket, key, store.Cond{}, store.Updates{s.field: s.value})
	}
	return true, nil
}

func newCorruptedSubscriptionRepo(t *testing.T, field string, value any) (*StoreSubscriptionRepository, *domain.Subscription) {
	t.Helper()
	log := testLogger()
	faulty := &corruptingStore{
		RecordStore: store.NewMemoryStore(log),
		field:       field,
		value:       value,
	}
	repo := NewStoreSubscriptionRepository(faulty, log)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := domain.NewPendingSubscription("user-1", "user-1", domain.PlanMonthly, decimal.NewFromInt(1000), now)
	require.NoError(t, repo.Create(context.Background(), sub))
	return repo, sub
}

func TestAttachOrderDetectsUnhonoredWrite(t *testing.T) {
	ctx := context.Background()
	repo, sub := newCorruptedSubscriptionRepo(t, "order_id", "order_garbage")

	_, err := repo.AttachOrder(ctx, sub, "order_1", sub.UpdatedAt.Add(time.Second))
	require.Error(t, err)

	var consistencyErr *domain.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "subscription", consistencyErr.Entity)
	assert.Equal(t, "order_id", consistencyErr.Field)
	assert.Equal(t, "order_1", consistencyErr.Expected)
	assert.Equal(t, "order_garbage", consistencyErr.Actual)
}

func TestActivateDetectsUnhonoredWrite(t *testing.T) {
	ctx := context.Background()
	repo, sub := newCorruptedSubscriptionRepo(t, "subscription_status", "pending")

	now := sub.UpdatedAt.Add(time.Second)
	attached, err := repo.AttachOrder(ctx, sub, "order_1", now)
	require.NoError(t, err, "attach writes pending, the corrupted field matches until activation")

	act, err := attached.ComputeActivation(now)
	require.NoError(t, err)

	_, err = repo.Activate(ctx, attached, act, now)
	var consistencyErr *domain.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "subscription_status", consistencyErr.Field)

	// Бизнес-отказ и отказ хранилища различимы для вызывающего
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

func TestExpireDetectsUnhonoredWrite(t *testing.T) {
	ctx := context.Background()
	log := testLogger()
	base := store.NewMemoryStore(log)
	faulty := &corruptingStore{RecordStore: base, field: "subscription_status", value: "active"}
	repo := NewStoreSubscriptionRepository(faulty, log)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := domain.NewPendingSubscription("user-1", "user-1", domain.PlanMonthly, decimal.NewFromInt(1000), now)
	require.NoError(t, repo.Create(ctx, sub))

	// Подписка доводится до active напрямую, мимо порчи статуса
	attached, err := NewStoreSubscriptionRepository(base, log).AttachOrder(ctx, sub, "order_1", now)
	require.NoError(t, err)
	act, err := attached.ComputeActivation(now)
	require.NoError(t, err)
	active, err := NewStoreSubscriptionRepository(base, log).Activate(ctx, attached, act, now)
	require.NoError(t, err)

	_, err = repo.Expire(ctx, active, now.Add(31*24*time.Hour))
	var consistencyErr *domain.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "subscription_status", consistencyErr.Field)
	assert.Equal(t, string(domain.SubscriptionStatusExpired), consistencyErr.Expected)
}

func TestFinalizeDetectsUnhonoredWrite(t *testing.T) {
	ctx := context.Background()
	log := testLogger()
	faulty := &corruptingStore{
		RecordStore: store.NewMemoryStore(log),
		field:       "status",
		value:       string(domain.TransactionStatusPending),
	}
	repo := NewStoreTransactionRepository(faulty, log)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordPending(ctx, "order_1", "user-1", "sub-1", now))

	_, err := repo.Finalize(ctx, "order_1", domain.TransactionStatusSuccess, "pay_1", now)
	require.Error(t, err)

	var consistencyErr *domain.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "transaction", consistencyErr.Entity)
	assert.Equal(t, "status", consistencyErr.Field)
	assert.Equal(t, string(domain.TransactionStatusSuccess), consistencyErr.Expected)
}
