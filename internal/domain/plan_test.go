package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPlanTypeDuration(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		plan PlanType
		want time.Duration
	}{
		{PlanMonthly, 30 * day},
		{PlanQuarterly, 90 * day},
		{PlanYearly, 360 * day},
	}

	for _, tt := range tests {
		if got := tt.plan.Duration(); got != tt.want {
			t.Fatalf("%s: Duration = %v, want %v", tt.plan, got, tt.want)
		}
	}
}

func TestPlanTypeValid(t *testing.T) {
	for _, plan := range []PlanType{PlanMonthly, PlanQuarterly, PlanYearly} {
		if !plan.Valid() {
			t.Fatalf("%s must be valid", plan)
		}
	}
	for _, plan := range []PlanType{"", "weekly", "Monthly"} {
		if plan.Valid() {
			t.Fatalf("%q must not be valid", plan)
		}
	}
}

func TestPriceTableAmount(t *testing.T) {
	table := DefaultPriceTable()

	amount, err := table.Amount(PlanMonthly)
	if err != nil {
		t.Fatalf("Amount(monthly): %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("Amount(monthly) = %s, want 1000", amount)
	}

	if _, err := table.Amount("weekly"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown plan: err = %v, want ErrInvalidInput", err)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		want    int64
		wantErr bool
	}{
		{"whole rupees", decimal.NewFromInt(1000), 100000, false},
		{"two decimal places", decimal.RequireFromString("10.05"), 1005, false},
		{"zero", decimal.Zero, 0, false},
		{"sub-paise fraction", decimal.RequireFromString("10.005"), 0, true},
		{"repeating fraction", decimal.RequireFromString("0.333"), 0, true},
	}

	for _, tt := range tests {
		got, err := MinorUnits(tt.amount)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%s: err = %v, want ErrInvalidInput", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: MinorUnits = %d, want %d", tt.name, got, tt.want)
		}
	}
}
