package billing

import (
	"time"

	"github.com/google/uuid"
)

// PriceSource tells where a subscription's current price came from.
// It is either PricedByInvoice or PricedByCatalog.
type PriceSource interface {
	Price() Money
	Source() string
	priceSource()
}

// PricedByInvoice is the amount the customer agreed to on their last paid invoice.
// It is not affected by later catalog edits.
type PricedByInvoice struct {
	Amount    Money
	InvoiceID uuid.UUID
}

func (p PricedByInvoice) Price() Money   { return p.Amount }
func (p PricedByInvoice) Source() string { return "invoice" }
func (PricedByInvoice) priceSource()     {}

// PricedByCatalog is the live price, used when no paid invoice exists.
// Custom prices negotiated on the subscription are reported here too.
type PricedByCatalog struct {
	Amount Money
	Custom bool
}

func (p PricedByCatalog) Price() Money { return p.Amount }
func (p PricedByCatalog) Source() string {
	if p.Custom {
		return "custom"
	}
	return "catalog"
}
func (PricedByCatalog) priceSource() {}

// ResolveCurrentPrice picks the display price of sub: the final amount of the most
// recent paid invoice when present, otherwise the subscription's custom price,
// otherwise the catalog price for the plan and period.
func ResolveCurrentPrice(calc *Calculator, sub *Subscription, lastPaid *Invoice) (PriceSource, error) {
	if lastPaid != nil && lastPaid.Status == InvoicePaid {
		return PricedByInvoice{Amount: lastPaid.FinalAmount, InvoiceID: lastPaid.ID}, nil
	}
	return catalogPrice(calc, sub)
}

// resolveCyclePrice is the price of the running cycle used for proration credit.
// It follows the same precedence as ResolveCurrentPrice but ignores the proration
// credit already applied on the paid invoice.
func resolveCyclePrice(calc *Calculator, sub *Subscription, lastPaid *Invoice) (PriceSource, error) {
	if lastPaid != nil && lastPaid.Status == InvoicePaid {
		return PricedByInvoice{Amount: lastPaid.CyclePrice(), InvoiceID: lastPaid.ID}, nil
	}
	return catalogPrice(calc, sub)
}

func catalogPrice(calc *Calculator, sub *Subscription) (PriceSource, error) {
	if sub.CustomPrice != nil {
		return PricedByCatalog{Amount: *sub.CustomPrice, Custom: true}, nil
	}
	plan, err := calc.Catalog().Plan(NormalizePlanCode(string(sub.PlanCode)))
	if err != nil {
		return nil, err
	}
	period, _ := sub.EffectivePeriod()
	price, _ := plan.Price(period)
	return PricedByCatalog{Amount: price}, nil
}

// Overview is the billing summary shown on the account page.
type Overview struct {
	TotalProperties       int           `json:"totalProperties"`
	HasActiveSubscription bool          `json:"hasActiveSubscription"`
	PlanCode              PlanCode      `json:"planCode,omitempty"`
	PlanName              string        `json:"planName,omitempty"`
	Term                  BillingPeriod `json:"term,omitempty"`
	MaxProperties         int           `json:"maxProperties"`
	DaysUntilExpiry       int           `json:"daysUntilExpiry"`
	NextPaymentAmount     *Money        `json:"nextPaymentAmount,omitempty"`
	NextPaymentDate       *time.Time    `json:"nextPaymentDate,omitempty"`
	PriceSource           PriceSource   `json:"-"`
	Cancelled             bool          `json:"cancelled"`
}

// BuildOverview aggregates the display overview. sub may be nil or inactive.
func BuildOverview(calc *Calculator, sub *Subscription, lastPaid *Invoice, properties int, now time.Time) (Overview, error) {
	ov := Overview{TotalProperties: properties}
	if sub == nil || sub.EndDate.Before(now) || sub.Status == StatusExpired {
		return ov, nil
	}

	plan, err := calc.Catalog().Plan(NormalizePlanCode(string(sub.PlanCode)))
	if err != nil {
		return Overview{}, err
	}
	period, _ := sub.EffectivePeriod()

	ov.HasActiveSubscription = sub.IsActive(now)
	ov.Cancelled = sub.Status == StatusCancelled
	ov.PlanCode = plan.Code
	ov.PlanName = plan.Name
	ov.Term = period
	ov.MaxProperties = plan.MaxProperties
	ov.DaysUntilExpiry = sub.DaysUntilExpiry(now)

	if ov.Cancelled {
		// no renewal is due
		return ov, nil
	}

	src, err := ResolveCurrentPrice(calc, sub, lastPaid)
	if err != nil {
		return Overview{}, err
	}
	amount := src.Price()
	next := sub.EndDate
	ov.PriceSource = src
	ov.NextPaymentAmount = &amount
	ov.NextPaymentDate = &next
	return ov, nil
}
