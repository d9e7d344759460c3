package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlanType тип тарифного плана подписки
type PlanType string

const (
	PlanMonthly   PlanType = "monthly"
	PlanQuarterly PlanType = "quarterly"
	PlanYearly    PlanType = "yearly"
)

// billingUnit расчетный месяц, приближенно 30 дней (не календарный)
const billingUnit = 30 * 24 * time.Hour

// planUnits количество расчетных месяцев для каждого плана
var planUnits = map[PlanType]int{
	PlanMonthly:   1,
	PlanQuarterly: 3,
	PlanYearly:    12,
}

// Valid проверяет, что план известен системе
func (p PlanType) Valid() bool {
	_, ok := planUnits[p]
	return ok
}

// Duration возвращает длительность плана
func (p PlanType) Duration() time.Duration {
	return time.Duration(planUnits[p]) * billingUnit
}

// PriceTable таблица цен по планам (в основных единицах валюты)
type PriceTable map[PlanType]decimal.Decimal

// DefaultPriceTable возвращает таблицу цен по умолчанию
func DefaultPriceTable() PriceTable {
	return PriceTable{
		PlanMonthly:   decimal.NewFromInt(1000),
		PlanQuarterly: decimal.NewFromInt(2700),
		PlanYearly:    decimal.NewFromInt(9600),
	}
}

// Amount возвращает цену плана из таблицы
func (t PriceTable) Amount(plan PlanType) (decimal.Decimal, error) {
	amount, ok := t[plan]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: unknown plan type %q", ErrInvalidInput, plan)
	}
	return amount, nil
}

// MinorUnits переводит сумму в минимальные единицы валюты (пайсы).
// Произведение должно быть целым, округление не допускается.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(decimal.NewFromInt(100))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s is not an integral number of minor units", ErrInvalidInput, amount.String())
	}
	return minor.IntPart(), nil
}
