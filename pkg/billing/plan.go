package billing

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// PlanCode identifies a subscription tier. The set of codes is closed.
type PlanCode string

const (
	PlanBasic      PlanCode = "BASIC"
	PlanHost       PlanCode = "HOST"
	PlanSuperhost  PlanCode = "SUPERHOST"
	PlanBusiness   PlanCode = "BUSINESS"
	PlanEnterprise PlanCode = "ENTERPRISE"
)

var planCodes = []PlanCode{PlanBasic, PlanHost, PlanSuperhost, PlanBusiness, PlanEnterprise}

// Valid reports whether c belongs to the closed set of tier codes.
func (c PlanCode) Valid() bool {
	return slices.Contains(planCodes, c)
}

// NormalizePlanCode maps a stored or user-supplied plan name ("host", " Superhost ")
// to its catalog code.
func NormalizePlanCode(name string) PlanCode {
	return PlanCode(strings.ToUpper(strings.TrimSpace(name)))
}

// Feature represents a plan-specific capability shown on pricing pages.
type Feature string

const (
	FeatureDigitalGuides     Feature = "digital_guides"
	FeatureQRCodes           Feature = "qr_codes"
	FeatureAnalytics         Feature = "analytics"
	FeatureNotifications     Feature = "notifications"
	FeatureCustomBranding    Feature = "custom_branding"
	FeatureMultiLanguage     Feature = "multi_language"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureAPI               Feature = "api"
	FeatureAccountManager    Feature = "account_manager"
	FeatureTeamCollaboration Feature = "team_collaboration"
)

// Plan describes a subscription tier. Plans are immutable once loaded into a Catalog.
type Plan struct {
	Code            PlanCode  `json:"code" yaml:"code"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	MaxProperties   int       `json:"maxProperties" yaml:"max_properties"`
	PriceMonthly    Money     `json:"priceMonthly" yaml:"price_monthly"`
	PriceSemiannual Money     `json:"priceSemiannual" yaml:"price_semiannual"`
	PriceAnnual     Money     `json:"priceAnnual" yaml:"price_annual"`
	Features        []Feature `json:"features" yaml:"features"`
	Visible         bool      `json:"visible" yaml:"visible"` // listed on the public pricing page
}

// Price returns the plan price for one cycle of the given period.
// The second result is false when the period is not recognized.
func (p Plan) Price(period BillingPeriod) (Money, bool) {
	switch period {
	case PeriodMonthly:
		return p.PriceMonthly, true
	case PeriodSemiannual:
		return p.PriceSemiannual, true
	case PeriodAnnual:
		return p.PriceAnnual, true
	}
	return p.PriceMonthly, false
}

// PricePerProperty returns the monthly price divided by the property ceiling.
// Returns zero when MaxProperties is zero.
func (p Plan) PricePerProperty() Money {
	if p.MaxProperties <= 0 {
		return Money{Currency: p.PriceMonthly.Currency}
	}
	per := p.PriceMonthly.Decimal().Div(decimal.NewFromInt(int64(p.MaxProperties)))
	return MoneyFromDecimal(per, p.PriceMonthly.Currency)
}

// HasFeature reports whether the plan includes the feature.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

func (p Plan) clone() Plan {
	p.Features = slices.Clone(p.Features)
	return p
}

// periodPrice derives a cycle price from the monthly price:
// monthly × months × (1 − discount), rounded to the minor unit.
func periodPrice(monthly Money, period BillingPeriod) Money {
	factor := decimal.NewFromInt(int64(period.Months())).Mul(decimal.NewFromInt(1).Sub(period.Discount()))
	return monthly.Mul(factor)
}

// PlanComparison contains the feature differences between two plans.
// Used to tell users what they gain on upgrade or lose on a scheduled downgrade.
type PlanComparison struct {
	NewFeatures         []Feature `json:"newFeatures"`
	LostFeatures        []Feature `json:"lostFeatures"`
	PropertyCeilingFrom int       `json:"propertyCeilingFrom"`
	PropertyCeilingTo   int       `json:"propertyCeilingTo"`
}

// IsReduction reports whether the target plan removes features or lowers the ceiling.
func (c *PlanComparison) IsReduction() bool {
	return len(c.LostFeatures) > 0 || c.PropertyCeilingTo < c.PropertyCeilingFrom
}

// ComparePlans returns the differences between current and target plans.
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	comparison := &PlanComparison{
		NewFeatures:         make([]Feature, 0),
		LostFeatures:        make([]Feature, 0),
		PropertyCeilingFrom: current.MaxProperties,
		PropertyCeilingTo:   target.MaxProperties,
	}

	for _, feature := range target.Features {
		if !current.HasFeature(feature) {
			comparison.NewFeatures = append(comparison.NewFeatures, feature)
		}
	}

	for _, feature := range current.Features {
		if !target.HasFeature(feature) {
			comparison.LostFeatures = append(comparison.LostFeatures, feature)
		}
	}

	return comparison
}
