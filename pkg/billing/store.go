package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader exposes the persisted state the engine reads.
type Reader interface {
	// CurrentSubscription returns the user's latest subscription that is not expired
	// (ACTIVE or CANCELLED). Returns ErrSubscriptionNotFound if there is none.
	CurrentSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// LastPaidInvoice returns the most recently paid invoice of a subscription.
	// Returns ErrInvoiceNotFound if none is paid yet.
	LastPaidInvoice(ctx context.Context, subscriptionID uuid.UUID) (*Invoice, error)

	// PaidInvoices lists the invoices of a subscription paid at or after since,
	// oldest payment first.
	PaidInvoices(ctx context.Context, subscriptionID uuid.UUID, since time.Time) ([]Invoice, error)

	// Invoice returns ErrInvoiceNotFound for unknown IDs.
	Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// CouponByCode matches codes case-insensitively. Returns ErrCouponNotFound.
	CouponByCode(ctx context.Context, code string) (*Coupon, error)

	// CouponUses returns the number of redemptions by everyone and by userID.
	CouponUses(ctx context.Context, couponID, userID uuid.UUID) (global, user int, err error)
}

// Store persists subscriptions, invoices and coupons.
type Store interface {
	Reader

	CreateInvoice(ctx context.Context, inv *Invoice) error
	CreateCoupon(ctx context.Context, c *Coupon) error

	// DueSubscriptions lists ACTIVE and CANCELLED subscriptions whose end date is before now.
	DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]Subscription, error)

	// WithTx runs fn in a single transaction. Any error from fn rolls back every write.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of a transaction.
type Tx interface {
	Reader

	// LockSubscription returns the user's current subscription and holds a row lock
	// on it until the transaction ends. Returns ErrSubscriptionNotFound if there is none.
	LockSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// LockInvoice returns the invoice and holds a row lock on it.
	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// ConsumeCoupon records a redemption only if the coupon's caps still allow it.
	// Check and insert are atomic: returns ErrCouponExhausted or ErrCouponUserLimit
	// when a concurrent redemption took the last slot.
	ConsumeCoupon(ctx context.Context, c *Coupon, use CouponUse) error

	// SaveSubscription inserts a subscription with Version 0 or updates one whose
	// stored version equals Version. The stored version is incremented and written
	// back to sub. A version mismatch returns ErrSubscriptionConflict.
	SaveSubscription(ctx context.Context, sub *Subscription) error

	// UpdateInvoice writes the invoice status, subscription link and payment time.
	UpdateInvoice(ctx context.Context, inv *Invoice) error
}

// Locker serializes work on a key across service instances.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done. The lock expires after ttl
	// if release is never called.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
