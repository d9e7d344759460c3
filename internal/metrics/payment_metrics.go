package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics интерфейс метрик платежного цикла
type PaymentMetrics interface {
	IncOrderCreated(plan string)
	IncVerification(flow, outcome string)
	IncActivation(plan string, renewal bool)
	ObserveOrderAmount(amountMinor float64, currency string)
}

type paymentMetrics struct {
	ordersCreated *prometheus.CounterVec
	verifications *prometheus.CounterVec
	activations   *prometheus.CounterVec
	orderAmounts  *prometheus.HistogramVec
}

// NewPaymentMetrics создает и регистрирует метрики платежного цикла
func NewPaymentMetrics(registry *prometheus.Registry) PaymentMetrics {
	ordersCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "The total number of created gateway orders",
		},
		[]string{"plan"},
	)

	verifications := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "The total number of payment verifications by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	activations := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "The total number of subscription activations",
		},
		[]string{"plan", "kind"},
	)

	orderAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_amount_minor_units",
			Help:    "Order amounts distribution in minor currency units",
			Buckets: prometheus.ExponentialBuckets(1000, 10, 6), // 1e3 .. 1e8 пайс
		},
		[]string{"currency"},
	)

	return &paymentMetrics{
		ordersCreated: ordersCreated,
		verifications: verifications,
		activations:   activations,
		orderAmounts:  orderAmounts,
	}
}

// IncOrderCreated увеличивает счетчик созданных ордеров
func (m *paymentMetrics) IncOrderCreated(plan string) {
	m.ordersCreated.WithLabelValues(plan).Inc()
}

// IncVerification увеличивает счетчик проверок подписи
// flow: redirect|webhook, outcome: verified|mismatch
func (m *paymentMetrics) IncVerification(flow, outcome string) {
	m.verifications.WithLabelValues(flow, outcome).Inc()
}

// IncActivation увеличивает счетчик активаций подписок
func (m *paymentMetrics) IncActivation(plan string, renewal bool) {
	kind := "initial"
	if renewal {
		kind = "renewal"
	}
	m.activations.WithLabelValues(plan, kind).Inc()
}

// ObserveOrderAmount записывает сумму ордера
func (m *paymentMetrics) ObserveOrderAmount(amountMinor float64, currency string) {
	m.orderAmounts.WithLabelValues(currency).Observe(amountMinor)
}

// NopMetrics заглушка для тестов
type NopMetrics struct{}

func (NopMetrics) IncOrderCreated(plan string)                           {}
func (NopMetrics) IncVerification(flow, outcome string)                  {}
func (NopMetrics) IncActivation(plan string, renewal bool)               {}
func (NopMetrics) ObserveOrderAmount(amountMinor float64, currency string) {}
