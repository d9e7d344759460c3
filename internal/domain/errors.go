package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrSignatureMismatch подпись платежа не прошла проверку (ожидаемый исход, не исключение)
	ErrSignatureMismatch = errors.New("payment signature mismatch")

	// ErrSubscriptionBanned подписка заблокирована, активация запрещена
	ErrSubscriptionBanned = errors.New("subscription is banned")

	// ErrTransactionFinalized транзакция уже в конечном статусе
	ErrTransactionFinalized = errors.New("transaction already finalized")

	// ErrConflict условное обновление не прошло: состояние изменилось параллельно
	ErrConflict = errors.New("conditional update conflict")

	// ErrUpstreamUnavailable платежный шлюз недоступен или не ответил вовремя
	ErrUpstreamUnavailable = errors.New("payment gateway unavailable")

	// ErrSecretNotConfigured секрет шлюза не задан (ошибка конфигурации, не запроса)
	ErrSecretNotConfigured = errors.New("gateway secret is not configured")
)

// ConsistencyError означает, что хранилище не подтвердило запись при
// контрольном чтении. Это жесткая ошибка, не бизнес-отказ.
type ConsistencyError struct {
	Entity   string
	Key      string
	Field    string
	Expected string
	Actual   string
}

// Error реализует интерфейс error
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error on %s %q: field %s expected %q, store returned %q",
		e.Entity, e.Key, e.Field, e.Expected, e.Actual)
}

// NewConsistencyError создает новую ошибку консистентности
func NewConsistencyError(entity, key, field, expected, actual string) *ConsistencyError {
	return &ConsistencyError{Entity: entity, Key: key, Field: field, Expected: expected, Actual: actual}
}

// UpstreamError представляет ошибку обращения к платежному шлюзу
type UpstreamError struct {
	Op          string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error [%s]: %v", e.Op, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *UpstreamError) Unwrap() error {
	return e.OriginalErr
}

// Is делает UpstreamError сопоставимым с ErrUpstreamUnavailable
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// NewUpstreamError создает новую ошибку шлюза
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, OriginalErr: err}
}
