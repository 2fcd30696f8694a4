package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PropertyCounterFunc returns the number of properties a user manages.
// Called on every overview request, so it should be backed by an indexed count.
type PropertyCounterFunc func(ctx context.Context, userID uuid.UUID) (int, error)

// ServiceOption configures the billing service.
type ServiceOption func(*service)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLocker serializes payment confirmations per user across instances.
// Without it only the store's row locks apply.
func WithLocker(l Locker) ServiceOption {
	return func(s *service) {
		s.locker = l
	}
}

// WithLockTTL sets how long a confirmation lock is held if never released.
func WithLockTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPropertyCounter registers the property counter used by Overview.
func WithPropertyCounter(fn PropertyCounterFunc) ServiceOption {
	return func(s *service) {
		if fn != nil {
			s.countProperties = fn
		}
	}
}

// WithInvoiceDueIn sets how long a pending invoice stays payable. Defaults to 7 days.
func WithInvoiceDueIn(d time.Duration) ServiceOption {
	return func(s *service) {
		if d > 0 {
			s.invoiceDueIn = d
		}
	}
}
