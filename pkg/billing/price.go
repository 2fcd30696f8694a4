package billing

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/hostkit/pkg/logger"
)

// Calculator prices catalog tiers per billing period.
type Calculator struct {
	catalog *Catalog
	log     *slog.Logger
}

// NewCalculator creates a price calculator over the catalog.
// A nil logger discards the fallback warnings.
func NewCalculator(catalog *Catalog, log *slog.Logger) *Calculator {
	if catalog == nil {
		panic("billing: catalog is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Calculator{catalog: catalog, log: log}
}

// Catalog returns the catalog the calculator prices against.
func (c *Calculator) Catalog() *Catalog {
	return c.catalog
}

// CalculatePrice returns the plan price for one cycle of period.
// Unknown periods are priced as monthly and logged as a warning.
func (c *Calculator) CalculatePrice(ctx context.Context, plan Plan, period BillingPeriod) Money {
	price, ok := plan.Price(period)
	if !ok {
		c.log.WarnContext(ctx, "unknown billing period, pricing as monthly",
			logger.PlanCode(string(plan.Code)),
			slog.String("period", string(period)),
		)
	}
	return price
}

// CalculatePriceFor looks up the plan by code and normalizes the period name
// before pricing. The period fallback of CalculatePrice applies.
func (c *Calculator) CalculatePriceFor(ctx context.Context, code PlanCode, period string) (Money, error) {
	plan, err := c.catalog.Plan(code)
	if err != nil {
		return Money{}, err
	}
	p, ok := ParseBillingPeriod(period)
	if !ok {
		p = BillingPeriod(period)
	}
	return c.CalculatePrice(ctx, plan, p), nil
}

// DiscountPercent returns the period discount in percent points (0, 10 or 20).
func (c *Calculator) DiscountPercent(period BillingPeriod) int {
	return period.DiscountPercent()
}

// PricePerProperty returns the monthly price per property slot of the tier,
// used for "from €X per property" marketing copy.
func (c *Calculator) PricePerProperty(code PlanCode) (Money, error) {
	plan, err := c.catalog.Plan(code)
	if err != nil {
		return Money{}, err
	}
	return plan.PricePerProperty(), nil
}

// Savings returns how much a period saves compared with paying monthly for
// the same number of months.
func (c *Calculator) Savings(plan Plan, period BillingPeriod) Money {
	full := plan.PriceMonthly.MulInt(int64(period.Months()))
	price, _ := plan.Price(period)
	return full.Sub(price).NonNegative()
}
