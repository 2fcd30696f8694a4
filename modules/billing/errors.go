package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/hostkit/handler"
	"github.com/dmitrymomot/hostkit/pkg/billing"
)

var errorTable = []struct {
	err    error
	status int
	key    string
}{
	{billing.ErrMissingUserID, http.StatusUnauthorized, "unauthorized"},
	{billing.ErrInvalidPropertyCount, http.StatusBadRequest, "invalid_property_count"},
	{billing.ErrInvalidBillingPeriod, http.StatusBadRequest, "invalid_billing_period"},
	{billing.ErrUnknownPlan, http.StatusUnprocessableEntity, "unknown_plan"},
	{billing.ErrNoActiveSubscription, http.StatusNotFound, "no_active_subscription"},
	{billing.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found"},
	{billing.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},
	{billing.ErrSubscriptionConflict, http.StatusConflict, "subscription_conflict"},
	{billing.ErrInvoiceNotPending, http.StatusConflict, "invoice_not_pending"},
	{billing.ErrInvalidSubscription, http.StatusConflict, "invalid_subscription_state"},
	{billing.ErrPlanChangeNotAllowed, http.StatusConflict, "plan_change_not_allowed"},
	{billing.ErrCouponNotFound, http.StatusConflict, "coupon_not_found"},
	{billing.ErrCouponExhausted, http.StatusConflict, "coupon_exhausted"},
	{billing.ErrCouponUserLimit, http.StatusConflict, "coupon_user_limit"},
	{billing.ErrCouponRejected, http.StatusConflict, "coupon_rejected"},
	{billing.ErrLockNotAcquired, http.StatusServiceUnavailable, "billing_busy"},
	{billing.ErrStoreUnavailable, http.StatusServiceUnavailable, "billing_unavailable"},
}

// MapError translates billing errors for handler.NewErrorHandler.
// Messages of server-side failures are not exposed.
func MapError(err error) (handler.HTTPError, bool) {
	for _, e := range errorTable {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.err.Error()
		if e.status >= http.StatusInternalServerError {
			msg = http.StatusText(e.status)
		}
		return handler.NewHTTPError(e.status, e.key, msg), true
	}
	return handler.HTTPError{}, false
}
