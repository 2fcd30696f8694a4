package billing_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/logger"
)

func TestCalculatePrice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	catalog := billing.DefaultCatalog()
	calc := billing.NewCalculator(catalog, nil)

	t.Run("period prices follow discounts", func(t *testing.T) {
		t.Parallel()
		for _, plan := range catalog.Plans() {
			monthly := plan.PriceMonthly.Decimal()
			semi := billing.MoneyFromDecimal(monthly.Mul(decimal.NewFromInt(6)).Mul(decimal.RequireFromString("0.90")), "EUR")
			annual := billing.MoneyFromDecimal(monthly.Mul(decimal.NewFromInt(12)).Mul(decimal.RequireFromString("0.80")), "EUR")

			assert.Equal(t, plan.PriceMonthly, calc.CalculatePrice(ctx, plan, billing.PeriodMonthly), plan.Code)
			assert.Equal(t, semi, calc.CalculatePrice(ctx, plan, billing.PeriodSemiannual), plan.Code)
			assert.Equal(t, annual, calc.CalculatePrice(ctx, plan, billing.PeriodAnnual), plan.Code)
		}
	})

	t.Run("unknown period falls back to monthly with a warning", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		calc := billing.NewCalculator(catalog, logger.New(logger.WithOutput(buf)))

		price, err := calc.CalculatePriceFor(ctx, billing.PlanHost, "fortnightly")
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(2900), price)
		assert.Contains(t, buf.String(), "unknown billing period")
		assert.Contains(t, buf.String(), `"plan_code":"HOST"`)
	})

	t.Run("period synonyms", func(t *testing.T) {
		t.Parallel()
		price, err := calc.CalculatePriceFor(ctx, billing.PlanHost, "Yearly")
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(27840), price)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		_, err := calc.CalculatePriceFor(ctx, "GOLD", "monthly")
		assert.ErrorIs(t, err, billing.ErrUnknownPlan)
	})
}

func TestCalculatorHelpers(t *testing.T) {
	t.Parallel()

	catalog := billing.DefaultCatalog()
	calc := billing.NewCalculator(catalog, nil)

	assert.Equal(t, 0, calc.DiscountPercent(billing.PeriodMonthly))
	assert.Equal(t, 10, calc.DiscountPercent(billing.PeriodSemiannual))
	assert.Equal(t, 20, calc.DiscountPercent(billing.PeriodAnnual))

	per, err := calc.PricePerProperty(billing.PlanHost)
	require.NoError(t, err)
	assert.Equal(t, billing.EUR(580), per)

	host, _ := catalog.Plan(billing.PlanHost)
	assert.Equal(t, billing.EUR(2900*12-27840), calc.Savings(host, billing.PeriodAnnual))
	assert.Equal(t, billing.EUR(0), calc.Savings(host, billing.PeriodMonthly))

	assert.Equal(t, billing.Money{Currency: "EUR"}, billing.Plan{PriceMonthly: billing.EUR(100)}.PricePerProperty())
	assert.Panics(t, func() { billing.NewCalculator(nil, nil) })
}

func TestMoneyString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		money billing.Money
		want  string
	}{
		{billing.EUR(2900), "€29.00"},
		{billing.EUR(5), "€0.05"},
		{billing.EUR(-500), "-€5.00"},
		{billing.EUR(900719925474099301), "€9007199254740993.01"},
		{billing.Money{Amount: 1250, Currency: "XYZ"}, "12.50 XYZ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.money.String())
	}
}
