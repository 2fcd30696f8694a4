package billing

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "ACTIVE"
	StatusCancelled SubscriptionStatus = "CANCELLED" // runs until EndDate, then expires
	StatusExpired   SubscriptionStatus = "EXPIRED"
)

// Subscription is a user's commitment to a plan for a billing period.
// A user has at most one current subscription.
type Subscription struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"userId"`
	PlanCode      PlanCode           `json:"planCode"`
	BillingPeriod BillingPeriod      `json:"billingPeriod"`
	Status        SubscriptionStatus `json:"status"`
	StartDate     time.Time          `json:"startDate"`
	EndDate       time.Time          `json:"endDate"`
	CustomPrice   *Money             `json:"customPrice,omitempty"` // negotiated cycle price, overrides catalog
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	CancelledAt   *time.Time         `json:"cancelledAt,omitempty"`
}

// IsActive reports whether the subscription currently grants access.
// Only ACTIVE subscriptions that have not passed their end date count.
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.Status == StatusActive && !s.EndDate.Before(now)
}

// EffectivePeriod returns the stored billing period. Subscriptions created
// before the period was persisted fall back to inference from the cycle length;
// the second result reports whether that fallback was used.
func (s *Subscription) EffectivePeriod() (BillingPeriod, bool) {
	if s.BillingPeriod.Valid() {
		return s.BillingPeriod, false
	}
	return InferBillingPeriod(s.StartDate, s.EndDate), true
}

// DaysUntilExpiry returns the number of started days until EndDate, never negative.
func (s *Subscription) DaysUntilExpiry(now time.Time) int {
	return daysUntil(now, s.EndDate)
}

// InvoiceStatus represents the payment state of an invoice.
type InvoiceStatus string

const (
	InvoicePending  InvoiceStatus = "PENDING"
	InvoicePaid     InvoiceStatus = "PAID"
	InvoiceRejected InvoiceStatus = "REJECTED"
)

// Invoice is the charge for one plan purchase or change.
// Paid invoices are immutable and fix the price the customer agreed to.
type Invoice struct {
	ID             uuid.UUID     `json:"id"`
	SubscriptionID *uuid.UUID    `json:"subscriptionId,omitempty"` // set once paid
	UserID         uuid.UUID     `json:"userId"`
	Kind           ChangeKind    `json:"kind"`
	BaseVersion    int64         `json:"baseVersion"` // version of the replaced subscription, 0 if none
	PlanCode       PlanCode      `json:"planCode"`
	BillingPeriod  BillingPeriod `json:"billingPeriod"`
	CouponCode     string        `json:"couponCode,omitempty"`
	Amount         Money         `json:"amount"`      // cycle price before adjustments
	Discount       Money         `json:"discount"`    // coupon discount
	Credit         Money         `json:"credit"`      // proration credit from the replaced cycle
	FinalAmount    Money         `json:"finalAmount"` // charged today
	ExtraMonths    int           `json:"extraMonths,omitempty"`
	Status         InvoiceStatus `json:"status"`
	IssuedAt       time.Time     `json:"issuedAt"`
	DueAt          time.Time     `json:"dueAt"`
	PaidAt         *time.Time    `json:"paidAt,omitempty"`
}

// CyclePrice returns what the customer pays for a full cycle under this
// invoice: the amount after the coupon discount, before proration credit.
func (inv *Invoice) CyclePrice() Money {
	return inv.Amount.Sub(inv.Discount).NonNegative()
}
