package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/billing"
)

func TestBuildOverview(t *testing.T) {
	t.Parallel()

	calc := billing.NewCalculator(billing.DefaultCatalog(), nil)
	now := date(2025, 3, 1)

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		ov, err := billing.BuildOverview(calc, nil, nil, 3, now)
		require.NoError(t, err)
		assert.False(t, ov.HasActiveSubscription)
		assert.Equal(t, 3, ov.TotalProperties)
		assert.Nil(t, ov.NextPaymentAmount)
		assert.Nil(t, ov.PriceSource)
	})

	t.Run("priced by paid invoice", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(billing.PlanHost, billing.PeriodSemiannual, date(2025, 1, 1))
		inv := &billing.Invoice{
			ID:          uuid.New(),
			Status:      billing.InvoicePaid,
			Amount:      billing.EUR(15660),
			FinalAmount: billing.EUR(14000),
		}

		ov, err := billing.BuildOverview(calc, sub, inv, 4, now)
		require.NoError(t, err)
		assert.True(t, ov.HasActiveSubscription)
		assert.Equal(t, billing.PlanHost, ov.PlanCode)
		assert.Equal(t, "Host", ov.PlanName)
		assert.Equal(t, billing.PeriodSemiannual, ov.Term)
		assert.Equal(t, 5, ov.MaxProperties)
		assert.Equal(t, 122, ov.DaysUntilExpiry)
		require.NotNil(t, ov.NextPaymentAmount)
		assert.Equal(t, billing.EUR(14000), *ov.NextPaymentAmount)
		assert.Equal(t, sub.EndDate, *ov.NextPaymentDate)

		src, ok := ov.PriceSource.(billing.PricedByInvoice)
		require.True(t, ok)
		assert.Equal(t, inv.ID, src.InvoiceID)
	})

	t.Run("priced by catalog without paid invoice", func(t *testing.T) {
		t.Parallel()
		sub := activeSub("superhost", billing.PeriodAnnual, date(2025, 1, 1))
		pending := &billing.Invoice{ID: uuid.New(), Status: billing.InvoicePending, FinalAmount: billing.EUR(1)}

		ov, err := billing.BuildOverview(calc, sub, pending, 9, now)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanSuperhost, ov.PlanCode)
		assert.Equal(t, billing.EUR(66240), *ov.NextPaymentAmount)
		_, ok := ov.PriceSource.(billing.PricedByCatalog)
		assert.True(t, ok)
		assert.Equal(t, "catalog", ov.PriceSource.Source())
	})

	t.Run("custom price", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(billing.PlanEnterprise, billing.PeriodAnnual, date(2025, 1, 1))
		custom := billing.EUR(500000)
		sub.CustomPrice = &custom

		ov, err := billing.BuildOverview(calc, sub, nil, 120, now)
		require.NoError(t, err)
		assert.Equal(t, custom, *ov.NextPaymentAmount)
		assert.Equal(t, "custom", ov.PriceSource.Source())
	})

	t.Run("cancelled has no next payment", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(billing.PlanHost, billing.PeriodAnnual, date(2025, 1, 1))
		sub.Status = billing.StatusCancelled
		cancelled := now.Add(-time.Hour)
		sub.CancelledAt = &cancelled

		ov, err := billing.BuildOverview(calc, sub, nil, 2, now)
		require.NoError(t, err)
		assert.False(t, ov.HasActiveSubscription)
		assert.True(t, ov.Cancelled)
		assert.Equal(t, billing.PlanHost, ov.PlanCode)
		assert.Nil(t, ov.NextPaymentAmount)
	})

	t.Run("lapsed subscription", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(billing.PlanHost, billing.PeriodMonthly, date(2025, 1, 1))
		ov, err := billing.BuildOverview(calc, sub, nil, 2, now)
		require.NoError(t, err)
		assert.False(t, ov.HasActiveSubscription)
		assert.Empty(t, ov.PlanCode)
	})
}
