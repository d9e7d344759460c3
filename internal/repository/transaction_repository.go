package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

const bucketTransactions = "transactions"

// TransactionRepository журнал платежных попыток, ключ — order_id шлюза
type TransactionRepository interface {
	// RecordPending создает или обновляет запись журнала в статусе pending
	RecordPending(ctx context.Context, orderID, userID, subscriptionID string, now time.Time) error

	// Get возвращает запись журнала по order_id
	Get(ctx context.Context, orderID string, mode store.ReadMode) (*domain.Transaction, error)

	// Finalize переводит запись в конечный статус и возвращает статус до
	// вызова. Повторный вызов для уже закрытой записи — no-op: возвращается
	// существующий конечный статус без побочных эффектов.
	Finalize(ctx context.Context, orderID string, outcome domain.TransactionStatus, paymentID string, now time.Time) (domain.TransactionStatus, error)
}

// StoreTransactionRepository реализация журнала поверх RecordStore
type StoreTransactionRepository struct {
	store store.RecordStore
	log   *logger.Logger
}

// NewStoreTransactionRepository создает новый журнал транзакций
func NewStoreTransactionRepository(st store.RecordStore, log *logger.Logger) *StoreTransactionRepository {
	return &StoreTransactionRepository{
		store: st,
		log:   log,
	}
}

// RecordPending создает или обновляет запись журнала в статусе pending
func (r *StoreTransactionRepository) RecordPending(ctx context.Context, orderID, userID, subscriptionID string, now time.Time) error {
	t := &domain.Transaction{
		OrderID:        orderID,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Status:         domain.TransactionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inserted, err := r.store.PutIfAbsent(ctx, bucketTransactions, orderID, encodeTransaction(t))
	if err != nil {
		return fmt.Errorf("failed to record pending transaction: %w", err)
	}
	if inserted {
		return nil
	}

	// Запись уже есть: обновляем только если она все еще pending
	applied, err := r.store.Update(ctx, bucketTransactions, orderID,
		store.Cond{"status": string(domain.TransactionStatusPending)},
		store.Updates{
			"user_id":         userID,
			"subscription_id": subscriptionID,
			"updated_at":      now.UTC().Format(timeLayout),
		})
	if err != nil {
		return fmt.Errorf("failed to refresh pending transaction: %w", err)
	}
	if !applied {
		return domain.ErrTransactionFinalized
	}
	return nil
}

// Get возвращает запись журнала по order_id
func (r *StoreTransactionRepository) Get(ctx context.Context, orderID string, mode store.ReadMode) (*domain.Transaction, error) {
	rec, ok, err := r.store.Get(ctx, bucketTransactions, orderID, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return decodeTransaction(rec)
}

// Finalize переводит запись журнала pending→success|failed одним условным
// обновлением. При гонке двух доставок побеждает первый зафиксированный
// исход, второй вызов видит конечный статус и ничего не меняет.
func (r *StoreTransactionRepository) Finalize(ctx context.Context, orderID string, outcome domain.TransactionStatus, paymentID string, now time.Time) (domain.TransactionStatus, error) {
	if !outcome.Terminal() {
		return "", fmt.Errorf("%w: finalize outcome must be terminal, got %q", domain.ErrInvalidInput, outcome)
	}

	updates := store.Updates{
		"status":     string(outcome),
		"updated_at": now.UTC().Format(timeLayout),
	}
	if outcome == domain.TransactionStatusSuccess {
		updates["payment_id"] = paymentID
	}

	applied, err := r.store.Update(ctx, bucketTransactions, orderID,
		store.Cond{"status": string(domain.TransactionStatusPending)}, updates)
	if err != nil {
		return "", fmt.Errorf("failed to finalize transaction: %w", err)
	}
	if applied {
		// Контрольное чтение: хранилище обязано вернуть записанный статус
		rec, ok, err := r.store.Get(ctx, bucketTransactions, orderID, store.ReadStrong)
		if err != nil {
			return "", fmt.Errorf("failed to re-read transaction: %w", err)
		}
		if !ok || rec["status"] != string(outcome) {
			actual := ""
			if ok {
				actual, _ = rec["status"].(string)
			}
			return "", domain.NewConsistencyError("transaction", orderID, "status", string(outcome), actual)
		}
		return domain.TransactionStatusPending, nil
	}

	// Условие не прошло: запись либо отсутствует, либо уже закрыта
	existing, err := r.Get(ctx, orderID, store.ReadStrong)
	if err != nil {
		return "", err
	}
	if !existing.Status.Terminal() {
		// pending, но условное обновление не прошло — значит статус
		// поменялся между двумя обращениями, пусть вызывающий повторит
		return "", domain.ErrConflict
	}

	r.log.Infow("Transaction already finalized, finalize is a no-op",
		"orderID", orderID, "status", existing.Status, "requested", outcome)
	return existing.Status, nil
}
