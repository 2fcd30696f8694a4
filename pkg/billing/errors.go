package billing

import "errors"

var (
	ErrUnknownPlan          = errors.New("billing plan not found")
	ErrInvalidCatalog       = errors.New("invalid billing plan catalog")
	ErrFailedToLoadPlans    = errors.New("failed to load billing plans")
	ErrInvalidPropertyCount = errors.New("property count must be positive")
	ErrInvalidBillingPeriod = errors.New("invalid billing period")

	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrNoActiveSubscription   = errors.New("no active subscription")
	ErrInvalidSubscription    = errors.New("invalid subscription state")
	ErrSubscriptionConflict   = errors.New("subscription was modified concurrently")
	ErrPlanChangeNotAllowed   = errors.New("plan change not allowed")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceNotPending      = errors.New("invoice is not pending")
	ErrFailedToCountResources = errors.New("failed to count user properties")

	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrCouponUserLimit   = errors.New("coupon per-user usage limit reached")
	ErrCouponRejected    = errors.New("coupon rejected")
	ErrInvalidCouponType = errors.New("invalid coupon type")
	ErrMissingUserID     = errors.New("user ID is required")
	ErrLockNotAcquired   = errors.New("failed to acquire billing lock")
	ErrStoreUnavailable  = errors.New("billing store unavailable")
)
