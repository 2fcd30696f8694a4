package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponType selects how a coupon's value is interpreted.
type CouponType string

const (
	CouponPercentage  CouponType = "PERCENTAGE"   // Value is percent points (1-100)
	CouponFixedAmount CouponType = "FIXED_AMOUNT" // Value is minor currency units
	CouponFreeMonths  CouponType = "FREE_MONTHS"  // Value is a number of months
)

// Coupon is an operator-created discount code.
// Coupons are immutable once created except for the Active flag.
type Coupon struct {
	ID             uuid.UUID
	Code           string
	Type           CouponType
	Value          int64
	ValidFrom      time.Time
	ValidUntil     *time.Time
	MaxUses        *int   // global cap, nil for unlimited
	MaxUsesPerUser *int   // per-user cap, nil for unlimited
	MinAmount      *Money // minimum base amount the coupon applies to
	Active         bool
	CreatedAt      time.Time
}

// CouponUse records a single redemption.
type CouponUse struct {
	ID        uuid.UUID
	CouponID  uuid.UUID
	UserID    uuid.UUID
	InvoiceID uuid.UUID
	UsedAt    time.Time
}

// CouponReason is the machine-checkable outcome of coupon validation.
type CouponReason string

const (
	CouponValid               CouponReason = ""
	CouponReasonNotFound      CouponReason = "CouponNotFound"
	CouponReasonExpired       CouponReason = "CouponExpired"
	CouponReasonExhausted     CouponReason = "CouponExhausted"
	CouponReasonUserLimit     CouponReason = "CouponUserLimitReached"
	CouponReasonBelowMinimum  CouponReason = "BelowMinimumAmount"
	CouponReasonInvalidConfig CouponReason = "CouponMisconfigured"
)

// CouponCheck carries the externally persisted state a validation depends on.
type CouponCheck struct {
	Now        time.Time
	Amount     Money // candidate base amount
	GlobalUses int   // redemptions by all users
	UserUses   int   // redemptions by the requesting user
}

// CouponValidation is the result of ValidateCoupon. Rejections are values, not errors.
type CouponValidation struct {
	Valid   bool
	Reason  CouponReason
	Message string
	Coupon  *Coupon
}

// ValidateCoupon runs the coupon checks in order and stops at the first failure:
// existence and activation, validity window, global cap, per-user cap, minimum amount.
func ValidateCoupon(c *Coupon, chk CouponCheck) CouponValidation {
	reject := func(reason CouponReason, msg string) CouponValidation {
		return CouponValidation{Reason: reason, Message: msg, Coupon: c}
	}

	if c == nil || !c.Active {
		return reject(CouponReasonNotFound, "This coupon code does not exist")
	}
	if chk.Now.Before(c.ValidFrom) {
		return reject(CouponReasonExpired, "This coupon is not valid yet")
	}
	if c.ValidUntil != nil && chk.Now.After(*c.ValidUntil) {
		return reject(CouponReasonExpired, "This coupon has expired")
	}
	if c.MaxUses != nil && chk.GlobalUses >= *c.MaxUses {
		return reject(CouponReasonExhausted, "This coupon has reached its usage limit")
	}
	if c.MaxUsesPerUser != nil && chk.UserUses >= *c.MaxUsesPerUser {
		return reject(CouponReasonUserLimit, "You have already used this coupon")
	}
	if c.MinAmount != nil && chk.Amount.Amount < c.MinAmount.Amount {
		return reject(CouponReasonBelowMinimum,
			fmt.Sprintf("This coupon requires a minimum purchase of %s", *c.MinAmount))
	}
	if _, err := c.Discount(); err != nil {
		return reject(CouponReasonInvalidConfig, "This coupon cannot be applied")
	}
	return CouponValidation{Valid: true, Coupon: c}
}

// Discount is the effect of a coupon on a base amount.
// Only Amount reduces what is charged today.
type Discount struct {
	Amount          Money // subtracted from the base amount
	EquivalentValue Money // informational value of the benefit
	ExtraMonths     int   // months added to the paid period
}

// CouponDiscount is implemented by each coupon type.
type CouponDiscount interface {
	Apply(base Money) Discount
}

// PercentageDiscount takes Percent percent off the base amount.
type PercentageDiscount struct {
	Percent int64
}

func (d PercentageDiscount) Apply(base Money) Discount {
	amount := base.Mul(decimal.New(d.Percent, -2)).Min(base).NonNegative()
	return Discount{Amount: amount, EquivalentValue: amount}
}

// FixedAmountDiscount subtracts Off minor units of the base currency, never below zero.
type FixedAmountDiscount struct {
	Off int64
}

func (d FixedAmountDiscount) Apply(base Money) Discount {
	amount := Money{Amount: d.Off, Currency: base.Currency}.Min(base).NonNegative()
	return Discount{Amount: amount, EquivalentValue: amount}
}

// FreeMonthsDiscount extends the paid period by Months and leaves today's
// charge unchanged. EquivalentValue reports base × Months for display.
type FreeMonthsDiscount struct {
	Months int
}

func (d FreeMonthsDiscount) Apply(base Money) Discount {
	return Discount{
		Amount:          Money{Currency: base.Currency},
		EquivalentValue: base.MulInt(int64(d.Months)),
		ExtraMonths:     d.Months,
	}
}

// Discount returns the type-specific discount behavior of the coupon.
func (c *Coupon) Discount() (CouponDiscount, error) {
	switch c.Type {
	case CouponPercentage:
		if c.Value <= 0 || c.Value > 100 {
			return nil, fmt.Errorf("%w: percentage %d out of range", ErrInvalidCouponType, c.Value)
		}
		return PercentageDiscount{Percent: c.Value}, nil
	case CouponFixedAmount:
		if c.Value <= 0 {
			return nil, fmt.Errorf("%w: fixed amount must be positive", ErrInvalidCouponType)
		}
		return FixedAmountDiscount{Off: c.Value}, nil
	case CouponFreeMonths:
		if c.Value <= 0 {
			return nil, fmt.Errorf("%w: free months must be positive", ErrInvalidCouponType)
		}
		return FreeMonthsDiscount{Months: int(c.Value)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidCouponType, c.Type)
}

// ApplyCoupon computes the discount of a validated coupon against base.
func ApplyCoupon(c *Coupon, base Money) (Discount, error) {
	d, err := c.Discount()
	if err != nil {
		return Discount{}, err
	}
	return d.Apply(base), nil
}
