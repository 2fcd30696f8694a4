package billing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// Catalog is the immutable, validated table of subscription tiers.
// Build it once at startup with NewCatalog or LoadCatalog and inject it where needed.
type Catalog struct {
	plans  []Plan // ascending by MaxProperties
	byCode map[PlanCode]int
}

// NewCatalog validates the plans and returns a catalog sorted by property ceiling.
// Missing semiannual and annual prices are derived from the monthly price.
// Any inconsistency is reported as ErrInvalidCatalog; callers should refuse to serve.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.Join(ErrInvalidCatalog, errors.New("at least one plan is required"))
	}

	sorted := make([]Plan, 0, len(plans))
	byCode := make(map[PlanCode]int, len(plans))
	for _, p := range plans {
		p = p.clone()
		if !p.Code.Valid() {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("unknown plan code %q", p.Code))
		}
		if _, dup := byCode[p.Code]; dup {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("duplicate plan code %q", p.Code))
		}
		byCode[p.Code] = -1

		if p.PriceMonthly.Currency == "" {
			p.PriceMonthly.Currency = DefaultCurrency
		}
		if p.PriceSemiannual.IsZero() {
			p.PriceSemiannual = periodPrice(p.PriceMonthly, PeriodSemiannual)
		}
		if p.PriceAnnual.IsZero() {
			p.PriceAnnual = periodPrice(p.PriceMonthly, PeriodAnnual)
		}
		sorted = append(sorted, p)
	}

	slices.SortFunc(sorted, func(a, b Plan) int {
		return cmp.Compare(a.MaxProperties, b.MaxProperties)
	})

	if err := validatePlans(sorted); err != nil {
		return nil, err
	}

	for i, p := range sorted {
		byCode[p.Code] = i
	}

	return &Catalog{plans: sorted, byCode: byCode}, nil
}

// MustNewCatalog is like NewCatalog but panics on an invalid catalog.
func MustNewCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(fmt.Sprintf("billing: %v", err))
	}
	return c
}

// LoadCatalog loads plans from src and validates them.
func LoadCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	if src == nil {
		panic("billing: PlansSource is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans...)
}

// Plan returns the tier with the given code.
func (c *Catalog) Plan(code PlanCode) (Plan, error) {
	i, ok := c.byCode[code]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, code)
	}
	return c.plans[i].clone(), nil
}

// Plans returns all tiers ordered ascending by MaxProperties.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	for i, p := range c.plans {
		out[i] = p.clone()
	}
	return out
}

// VisiblePlans returns the tiers offered for self-service signup, in catalog order.
func (c *Catalog) VisiblePlans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Visible {
			out = append(out, p.clone())
		}
	}
	return out
}

// Largest returns the tier with the highest property ceiling.
func (c *Catalog) Largest() Plan {
	return c.plans[len(c.plans)-1].clone()
}

// validatePlans checks the numeric consistency of tiers sorted by MaxProperties.
func validatePlans(plans []Plan) error {
	for i, p := range plans {
		if p.MaxProperties <= 0 {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s has non-positive property ceiling: %d", p.Code, p.MaxProperties))
		}
		if p.PriceMonthly.Amount <= 0 {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s has non-positive monthly price", p.Code))
		}
		for _, period := range []BillingPeriod{PeriodSemiannual, PeriodAnnual} {
			want := periodPrice(p.PriceMonthly, period)
			got, _ := p.Price(period)
			if got.Amount != want.Amount {
				return errors.Join(ErrInvalidCatalog,
					fmt.Errorf("plan %s %s price %s does not match %s", p.Code, period, got, want))
			}
		}

		if i == 0 {
			continue
		}
		prev := plans[i-1]
		if p.MaxProperties == prev.MaxProperties {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plans %s and %s share property ceiling %d", prev.Code, p.Code, p.MaxProperties))
		}
		if p.PriceMonthly.Amount <= prev.PriceMonthly.Amount {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s must cost more than %s", p.Code, prev.Code))
		}
		// prev.monthly/prev.max >= p.monthly/p.max, compared without division
		if prev.PriceMonthly.Amount*int64(p.MaxProperties) < p.PriceMonthly.Amount*int64(prev.MaxProperties) {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s price per property exceeds %s", p.Code, prev.Code))
		}
	}
	return nil
}
