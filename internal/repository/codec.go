package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/store"
)

// timeLayout фиксированная ширина, лексикографический порядок совпадает с
// хронологическим (важно для сортировки Query по created_at)
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Пустая строка в атрибуте означает незаполненное значение
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeSubscription(s *domain.Subscription) store.Record {
	remaining := ""
	if s.RemainingAmount != nil {
		remaining = s.RemainingAmount.String()
	}
	created := s.CreatedAt
	updated := s.UpdatedAt
	return store.Record{
		"subscription_id":     s.SubscriptionID,
		"user_id":             s.UserID,
		"plan_type":           string(s.PlanType),
		"credit_amount":       s.CreditAmount.String(),
		"remaining_amount":    remaining,
		"subscription_status": string(s.Status),
		"order_id":            s.OrderID,
		"start_date":          formatTime(s.StartDate),
		"expiry_date":         formatTime(s.ExpiryDate),
		"created_at":          created.UTC().Format(timeLayout),
		"updated_at":          updated.UTC().Format(timeLayout),
		"subscription_banned": s.Banned,
	}
}

func decodeSubscription(rec store.Record) (*domain.Subscription, error) {
	s := &domain.Subscription{}

	str := func(field string) string {
		v, _ := rec[field].(string)
		return v
	}

	s.SubscriptionID = str("subscription_id")
	s.UserID = str("user_id")
	s.PlanType = domain.PlanType(str("plan_type"))
	s.Status = domain.SubscriptionStatus(str("subscription_status"))
	s.OrderID = str("order_id")
	s.Banned, _ = rec["subscription_banned"].(bool)

	credit, err := decimal.NewFromString(str("credit_amount"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode credit_amount: %w", err)
	}
	s.CreditAmount = credit

	if raw := str("remaining_amount"); raw != "" {
		remaining, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode remaining_amount: %w", err)
		}
		s.RemainingAmount = &remaining
	}

	if s.StartDate, err = parseTime(str("start_date")); err != nil {
		return nil, fmt.Errorf("failed to decode start_date: %w", err)
	}
	if s.ExpiryDate, err = parseTime(str("expiry_date")); err != nil {
		return nil, fmt.Errorf("failed to decode expiry_date: %w", err)
	}

	created, err := parseTime(str("created_at"))
	if err != nil || created == nil {
		return nil, fmt.Errorf("failed to decode created_at: %w", err)
	}
	s.CreatedAt = *created

	updated, err := parseTime(str("updated_at"))
	if err != nil || updated == nil {
		return nil, fmt.Errorf("failed to decode updated_at: %w", err)
	}
	s.UpdatedAt = *updated

	return s, nil
}

func encodeTransaction(t *domain.Transaction) store.Record {
	return store.Record{
		"order_id":        t.OrderID,
		"user_id":         t.UserID,
		"subscription_id": t.SubscriptionID,
		"status":          string(t.Status),
		"payment_id":      t.PaymentID,
		"created_at":      t.CreatedAt.UTC().Format(timeLayout),
		"updated_at":      t.UpdatedAt.UTC().Format(timeLayout),
	}
}

func decodeTransaction(rec store.Record) (*domain.Transaction, error) {
	t := &domain.Transaction{}

	str := func(field string) string {
		v, _ := rec[field].(string)
		return v
	}

	t.OrderID = str("order_id")
	t.UserID = str("user_id")
	t.SubscriptionID = str("subscription_id")
	t.Status = domain.TransactionStatus(str("status"))
	t.PaymentID = str("payment_id")

	created, err := parseTime(str("created_at"))
	if err != nil || created == nil {
		return nil, fmt.Errorf("failed to decode created_at: %w", err)
	}
	t.CreatedAt = *created

	updated, err := parseTime(str("updated_at"))
	if err != nil || updated == nil {
		return nil, fmt.Errorf("failed to decode updated_at: %w", err)
	}
	t.UpdatedAt = *updated

	return t, nil
}
