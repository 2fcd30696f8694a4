package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/billing"
)

func ptr[T any](v T) *T { return &v }

func newCoupon(typ billing.CouponType, value int64) *billing.Coupon {
	return &billing.Coupon{
		ID:        uuid.New(),
		Code:      "WELCOME",
		Type:      typ,
		Value:     value,
		ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
}

func TestValidateCoupon(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		coupon func() *billing.Coupon
		check  billing.CouponCheck
		reason billing.CouponReason
	}{
		{
			name:   "valid",
			coupon: func() *billing.Coupon { return newCoupon(billing.CouponPercentage, 10) },
			check:  billing.CouponCheck{Now: now, Amount: billing.EUR(1000)},
			reason: billing.CouponValid,
		},
		{
			name:   "missing",
			coupon: func() *billing.Coupon { return nil },
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponReasonNotFound,
		},
		{
			name: "inactive",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.Active = false
				return c
			},
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponReasonNotFound,
		},
		{
			name: "not yet valid",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.ValidFrom = now.Add(time.Hour)
				return c
			},
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponReasonExpired,
		},
		{
			name: "expired",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.ValidUntil = ptr(now.Add(-time.Second))
				return c
			},
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponReasonExpired,
		},
		{
			name: "valid until now",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.ValidUntil = ptr(now)
				return c
			},
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponValid,
		},
		{
			name: "exhausted",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.MaxUses = ptr(1)
				return c
			},
			check:  billing.CouponCheck{Now: now, GlobalUses: 1},
			reason: billing.CouponReasonExhausted,
		},
		{
			name: "per-user limit",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.MaxUsesPerUser = ptr(1)
				return c
			},
			check:  billing.CouponCheck{Now: now, UserUses: 1},
			reason: billing.CouponReasonUserLimit,
		},
		{
			name: "exhausted is checked before minimum",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 10)
				c.MaxUses = ptr(1)
				c.MinAmount = ptr(billing.EUR(5000))
				return c
			},
			check:  billing.CouponCheck{Now: now, Amount: billing.EUR(100), GlobalUses: 1},
			reason: billing.CouponReasonExhausted,
		},
		{
			name: "below minimum",
			coupon: func() *billing.Coupon {
				c := newCoupon(billing.CouponPercentage, 50)
				c.MinAmount = ptr(billing.EUR(5000))
				return c
			},
			check:  billing.CouponCheck{Now: now, Amount: billing.EUR(4000)},
			reason: billing.CouponReasonBelowMinimum,
		},
		{
			name:   "misconfigured percentage",
			coupon: func() *billing.Coupon { return newCoupon(billing.CouponPercentage, 150) },
			check:  billing.CouponCheck{Now: now},
			reason: billing.CouponReasonInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := billing.ValidateCoupon(tt.coupon(), tt.check)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.reason == billing.CouponValid, res.Valid)
			if !res.Valid {
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}

func TestApplyCoupon(t *testing.T) {
	t.Parallel()

	t.Run("percentage", func(t *testing.T) {
		t.Parallel()
		c := newCoupon(billing.CouponPercentage, 50)
		c.MinAmount = ptr(billing.EUR(5000))

		d, err := billing.ApplyCoupon(c, billing.EUR(10000))
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(5000), d.Amount)
		assert.Equal(t, billing.EUR(5000), billing.EUR(10000).Sub(d.Amount))
		assert.Zero(t, d.ExtraMonths)
	})

	t.Run("percentage rounds to cents", func(t *testing.T) {
		t.Parallel()
		d, err := billing.ApplyCoupon(newCoupon(billing.CouponPercentage, 15), billing.EUR(2900))
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(435), d.Amount)
	})

	t.Run("fixed amount never exceeds base", func(t *testing.T) {
		t.Parallel()
		d, err := billing.ApplyCoupon(newCoupon(billing.CouponFixedAmount, 5000), billing.EUR(3000))
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(3000), d.Amount)

		d, err = billing.ApplyCoupon(newCoupon(billing.CouponFixedAmount, 500), billing.EUR(3000))
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(500), d.Amount)
	})

	t.Run("fixed amount uses the base currency", func(t *testing.T) {
		t.Parallel()
		c := newCoupon(billing.CouponFixedAmount, 700)
		c.MinAmount = &billing.Money{Amount: 100, Currency: "USD"}

		d, err := billing.ApplyCoupon(c, billing.Money{Amount: 5000, Currency: "GBP"})
		require.NoError(t, err)
		assert.Equal(t, billing.Money{Amount: 700, Currency: "GBP"}, d.Amount)
		assert.Equal(t, d.Amount, d.EquivalentValue)

		off, err := c.Discount()
		require.NoError(t, err)
		assert.Equal(t, billing.FixedAmountDiscount{Off: 700}, off)
	})

	t.Run("free months do not reduce today's charge", func(t *testing.T) {
		t.Parallel()
		base := billing.EUR(9000)
		d, err := billing.ApplyCoupon(newCoupon(billing.CouponFreeMonths, 2), base)
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(0), d.Amount)
		assert.Equal(t, base, base.Sub(d.Amount))
		assert.Equal(t, billing.EUR(18000), d.EquivalentValue)
		assert.Equal(t, 2, d.ExtraMonths)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		_, err := billing.ApplyCoupon(newCoupon("BOGO", 1), billing.EUR(100))
		assert.ErrorIs(t, err, billing.ErrInvalidCouponType)
	})
}
