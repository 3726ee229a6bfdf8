package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func twoLPs() []domain.LPProfile {
	return []domain.LPProfile{
		{ID: "lp-1", FundID: "fund-1", Name: "Pension A", Commitment: dec("6000000"), DefaultTaxRate: dec("0")},
		{ID: "lp-2", FundID: "fund-1", Name: "Endowment B", Commitment: dec("4000000"), DefaultTaxRate: dec("0")},
	}
}

func eventDate() *time.Time {
	t := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	return &t
}
