package domain

import "time"

// TransactionStatus статус записи в журнале транзакций
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Terminal сообщает, является ли статус конечным
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// Transaction запись о платежной попытке, ключ — order_id шлюза
type Transaction struct {
	OrderID        string            `json:"order_id"`
	UserID         string            `json:"user_id"`
	SubscriptionID string            `json:"subscription_id"`
	Status         TransactionStatus `json:"status"`
	PaymentID      string            `json:"payment_id,omitempty"` // заполняется только при успехе
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
