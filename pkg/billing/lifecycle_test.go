package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/statemachine"
)

func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sub := activeSub(billing.PlanHost, billing.PeriodMonthly, date(2025, 1, 1)) // ends 2025-02-01
	during := date(2025, 1, 15)
	after := date(2025, 2, 2)

	tests := []struct {
		name   string
		status billing.SubscriptionStatus
		event  billing.SubscriptionEvent
		at     bool // true: after end date
		want   billing.SubscriptionStatus
		err    func(error) bool
	}{
		{"renew active", billing.StatusActive, billing.EventRenew, false, billing.StatusActive, nil},
		{"change active", billing.StatusActive, billing.EventChange, false, billing.StatusActive, nil},
		{"change lapsed", billing.StatusActive, billing.EventChange, true, "", statemachine.IsTransitionRejectedError},
		{"cancel active", billing.StatusActive, billing.EventCancel, false, billing.StatusCancelled, nil},
		{"expire before end", billing.StatusActive, billing.EventExpire, false, "", statemachine.IsTransitionRejectedError},
		{"expire after end", billing.StatusActive, billing.EventExpire, true, billing.StatusExpired, nil},
		{"expire cancelled", billing.StatusCancelled, billing.EventExpire, true, billing.StatusExpired, nil},
		{"resume cancelled", billing.StatusCancelled, billing.EventRenew, false, billing.StatusActive, nil},
		{"supersede cancelled", billing.StatusCancelled, billing.EventSupersede, false, billing.StatusExpired, nil},
		{"supersede active", billing.StatusActive, billing.EventSupersede, false, "", statemachine.IsNoTransitionAvailableError},
		{"expired is final", billing.StatusExpired, billing.EventRenew, false, "", statemachine.IsNoTransitionAvailableError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := *sub
			s.Status = tt.status
			now := during
			if tt.at {
				now = after
			}

			got, err := s.NextStatus(ctx, tt.event, now)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, tt.err(err), err.Error())
				assert.Equal(t, tt.status, got)
				assert.False(t, s.CanTransition(ctx, tt.event, now))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, s.CanTransition(ctx, tt.event, now))
		})
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	inv := &billing.Invoice{Status: billing.InvoicePending}
	status, err := inv.NextStatus(ctx, billing.EventPay)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoicePaid, status)

	status, err = inv.NextStatus(ctx, billing.EventReject)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceRejected, status)

	paid := &billing.Invoice{Status: billing.InvoicePaid}
	_, err = paid.NextStatus(ctx, billing.EventReject)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
}

func TestSubscriptionIsActive(t *testing.T) {
	t.Parallel()

	sub := activeSub(billing.PlanHost, billing.PeriodMonthly, date(2025, 1, 1))
	assert.True(t, sub.IsActive(date(2025, 1, 20)))
	assert.True(t, sub.IsActive(sub.EndDate))
	assert.False(t, sub.IsActive(date(2025, 2, 2)))

	sub.Status = billing.StatusCancelled
	assert.False(t, sub.IsActive(date(2025, 1, 20)))

	var none *billing.Subscription
	assert.False(t, none.IsActive(date(2025, 1, 20)))
}
