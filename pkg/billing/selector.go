package billing

import "fmt"

// PlanForPropertyCount returns the smallest tier whose ceiling covers n properties.
// When n exceeds every ceiling the largest tier is returned; use
// NeedsEnterpriseContact to decide whether to route the user to sales.
func (c *Catalog) PlanForPropertyCount(n int) (Plan, error) {
	if n <= 0 {
		return Plan{}, fmt.Errorf("%w: got %d", ErrInvalidPropertyCount, n)
	}
	for _, p := range c.plans {
		if p.MaxProperties >= n {
			return p.clone(), nil
		}
	}
	return c.Largest(), nil
}

// NeedsEnterpriseContact reports whether n properties exceed the largest tier.
func (c *Catalog) NeedsEnterpriseContact(n int) bool {
	return n > c.plans[len(c.plans)-1].MaxProperties
}
