package service

import (
	"context"
	"sync"
)

// PaymentResult исход платежа, доставляемый ожидающему клиенту
type PaymentResult struct {
	OrderID   string `json:"order_id"`
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id,omitempty"`
}

// ResultBus раздает исходы платежей по каналам, ключ — order_id.
// Замена глобальной переменной с опросом в цикле: обработчик вебхука
// публикует результат, ожидающий HTTP-запрос блокируется на канале.
// Шина локальна для процесса и работает как best-effort: при рестарте
// или нескольких репликах клиент узнает исход обычным чтением подписки.
type ResultBus struct {
	mu      sync.Mutex
	waiters map[string][]chan PaymentResult
}

// NewResultBus создает новую шину результатов
func NewResultBus() *ResultBus {
	return &ResultBus{
		waiters: make(map[string][]chan PaymentResult),
	}
}

// Wait блокируется до публикации результата по orderID либо до отмены ctx
func (b *ResultBus) Wait(ctx context.Context, orderID string) (PaymentResult, error) {
	ch := make(chan PaymentResult, 1)

	b.mu.Lock()
	b.waiters[orderID] = append(b.waiters[orderID], ch)
	b.mu.Unlock()

	defer b.remove(orderID, ch)

	select {
	case <-ctx.Done():
		return PaymentResult{}, ctx.Err()
	case result := <-ch:
		return result, nil
	}
}

// Publish доставляет результат всем ожидающим по order_id. Отправка
// неблокирующая: каналы буферизованы, отставший получатель не держит
// публикующего.
func (b *ResultBus) Publish(result PaymentResult) {
	b.mu.Lock()
	waiters := b.waiters[result.OrderID]
	delete(b.waiters, result.OrderID)
	b.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- result:
		default:
		}
	}
}

// remove убирает канал из списка ожидающих
func (b *ResultBus) remove(orderID string, ch chan PaymentResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiters := b.waiters[orderID]
	for i, w := range waiters {
		if w == ch {
			b.waiters[orderID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(b.waiters[orderID]) == 0 {
		delete(b.waiters, orderID)
	}
}
