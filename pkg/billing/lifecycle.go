package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/hostkit/pkg/statemachine"
)

// SubscriptionEvent drives subscription status transitions.
type SubscriptionEvent string

const (
	EventRenew     SubscriptionEvent = "renew"
	EventChange    SubscriptionEvent = "change"
	EventCancel    SubscriptionEvent = "cancel"
	EventExpire    SubscriptionEvent = "expire"
	EventSupersede SubscriptionEvent = "supersede" // closes a cancelled term when a new subscription replaces it
)

// InvoiceEvent drives invoice status transitions.
type InvoiceEvent string

const (
	EventPay    InvoiceEvent = "pay"
	EventReject InvoiceEvent = "reject"
)

// lifecycleCheck is the data passed to subscription guards.
type lifecycleCheck struct {
	Now time.Time
	End time.Time
}

type subscriptionGuard = statemachine.Guard[SubscriptionStatus, SubscriptionEvent, lifecycleCheck]

var (
	termEnded subscriptionGuard = func(_ context.Context, _ SubscriptionStatus, _ SubscriptionEvent, d lifecycleCheck) bool {
		return d.End.Before(d.Now)
	}
	termRunning subscriptionGuard = func(_ context.Context, _ SubscriptionStatus, _ SubscriptionEvent, d lifecycleCheck) bool {
		return !d.End.Before(d.Now)
	}
)

var subscriptionLifecycle = statemachine.MustNew(
	statemachine.WithTransition[SubscriptionStatus, SubscriptionEvent, lifecycleCheck](StatusActive, StatusActive, EventRenew),
	statemachine.WithTransition(StatusActive, StatusActive, EventChange,
		statemachine.WithGuard(termRunning)),
	statemachine.WithTransition(StatusActive, StatusCancelled, EventCancel,
		statemachine.WithGuard(termRunning)),
	statemachine.WithTransition(StatusActive, StatusExpired, EventExpire,
		statemachine.WithGuard(termEnded)),
	statemachine.WithTransition(StatusCancelled, StatusExpired, EventExpire,
		statemachine.WithGuard(termEnded)),
	statemachine.WithTransition[SubscriptionStatus, SubscriptionEvent, lifecycleCheck](StatusCancelled, StatusExpired, EventSupersede),
	// resuming a cancelled subscription renews it
	statemachine.WithTransition[SubscriptionStatus, SubscriptionEvent, lifecycleCheck](StatusCancelled, StatusActive, EventRenew),
)

var invoiceLifecycle = statemachine.MustNew(
	statemachine.WithTransition[InvoiceStatus, InvoiceEvent, struct{}](InvoicePending, InvoicePaid, EventPay),
	statemachine.WithTransition[InvoiceStatus, InvoiceEvent, struct{}](InvoicePending, InvoiceRejected, EventReject),
)

// NextStatus returns the subscription status after event, or an error when the
// transition is not allowed from the current status at now.
func (s *Subscription) NextStatus(ctx context.Context, event SubscriptionEvent, now time.Time) (SubscriptionStatus, error) {
	return subscriptionLifecycle.Fire(ctx, s.Status, event, lifecycleCheck{Now: now, End: s.EndDate})
}

// CanTransition reports whether event is accepted for the subscription at now.
func (s *Subscription) CanTransition(ctx context.Context, event SubscriptionEvent, now time.Time) bool {
	return subscriptionLifecycle.CanFire(ctx, s.Status, event, lifecycleCheck{Now: now, End: s.EndDate})
}

// NextStatus returns the invoice status after event. Paid and rejected invoices are final.
func (inv *Invoice) NextStatus(ctx context.Context, event InvoiceEvent) (InvoiceStatus, error) {
	return invoiceLifecycle.Fire(ctx, inv.Status, event, struct{}{})
}
