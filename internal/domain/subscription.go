package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	SubscriptionStatusBanned  SubscriptionStatus = "banned"
)

// Subscription представляет запись подписки пользователя
type Subscription struct {
	SubscriptionID  string             `json:"subscription_id"`
	UserID          string             `json:"user_id"`
	PlanType        PlanType           `json:"plan_type"`
	CreditAmount    decimal.Decimal    `json:"credit_amount"`
	RemainingAmount *decimal.Decimal   `json:"remaining_amount,omitempty"` // nil до первой активации
	Status          SubscriptionStatus `json:"subscription_status"`
	OrderID         string             `json:"order_id"` // пустая строка, если нет незакрытого платежного намерения
	StartDate       *time.Time         `json:"start_date,omitempty"`
	ExpiryDate      *time.Time         `json:"expiry_date,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Banned          bool               `json:"subscription_banned"`
}

// NewPendingSubscription создает новую подписку в статусе pending
func NewPendingSubscription(subscriptionID, userID string, plan PlanType, credit decimal.Decimal, now time.Time) *Subscription {
	return &Subscription{
		SubscriptionID: subscriptionID,
		UserID:         userID,
		PlanType:       plan,
		CreditAmount:   credit,
		Status:         SubscriptionStatusPending,
		OrderID:        "",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasOutstandingOrder сообщает, есть ли у подписки незакрытое платежное намерение
func (s *Subscription) HasOutstandingOrder() bool {
	return s.OrderID != ""
}

// ExpiredAt сообщает, истекла ли подписка к моменту now
func (s *Subscription) ExpiredAt(now time.Time) bool {
	return s.ExpiryDate != nil && !s.ExpiryDate.After(now)
}

// Activation результат вычисления перехода в active
type Activation struct {
	RemainingAmount decimal.Decimal
	StartDate       time.Time
	ExpiryDate      time.Time
	Renewal         bool
}

// ComputeActivation вычисляет поля перехода pending→active либо продления.
// Продление до истечения срока продлевает от текущего expiry и накапливает
// остаток; в остальных случаях отсчет идет от now. Признак продления —
// незакончившийся expiry_date, а не статус: к моменту оплаты продления
// подписка уже переведена в pending новым ордером.
func (s *Subscription) ComputeActivation(now time.Time) (Activation, error) {
	if s.Banned || s.Status == SubscriptionStatusBanned {
		return Activation{}, ErrSubscriptionBanned
	}
	if !s.PlanType.Valid() {
		return Activation{}, ErrInvalidInput
	}

	act := Activation{
		RemainingAmount: s.CreditAmount,
		StartDate:       now,
		ExpiryDate:      now.Add(s.PlanType.Duration()),
	}

	if s.ExpiryDate != nil && s.ExpiryDate.After(now) {
		act.Renewal = true
		act.ExpiryDate = s.ExpiryDate.Add(s.PlanType.Duration())
		if s.RemainingAmount != nil {
			act.RemainingAmount = s.RemainingAmount.Add(s.CreditAmount)
		}
	}

	return act, nil
}
