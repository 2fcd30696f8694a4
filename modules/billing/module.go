package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/hostkit/handler"
	"github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/binder"
	"github.com/dmitrymomot/hostkit/pkg/logger"
)

// Module serves the billing API.
type Module struct {
	svc              billing.Service
	users            UserResolver
	log              *slog.Logger
	errorHandler     handler.ErrorHandler[handler.Context]
	paymentCallbacks bool
	now              func() time.Time
}

type Option func(*Module)

func WithLogger(log *slog.Logger) Option {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// WithErrorHandler replaces the JSON error handler built from MapError.
func WithErrorHandler(h handler.ErrorHandler[handler.Context]) Option {
	return func(m *Module) {
		m.errorHandler = h
	}
}

// WithClock sets the time source used for derived response fields.
func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// WithoutPaymentCallbacks leaves out the invoice confirm/reject routes, for
// deployments that mount them separately.
func WithoutPaymentCallbacks() Option {
	return func(m *Module) {
		m.paymentCallbacks = false
	}
}

// New panics if svc or users is nil.
func New(svc billing.Service, users UserResolver, opts ...Option) *Module {
	if svc == nil {
		panic("billing module: service is required")
	}
	if users == nil {
		panic("billing module: user resolver is required")
	}
	m := &Module{
		svc:              svc,
		users:            users,
		log:              logger.Discard(),
		paymentCallbacks: true,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.errorHandler == nil {
		m.errorHandler = handler.NewErrorHandler(m.log.With(logger.Component("billing_http")), MapError)
	}
	return m
}

func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", wrap(m, m.plans))

	quote := wrap(m, m.quote, binder.Query(), binder.JSON())
	r.Get("/pricing/calculate", quote)
	r.Post("/pricing/calculate", quote)

	r.Post("/validate-plan-change", wrap(m, m.validatePlanChange, binder.JSON()))
	r.Post("/preview-proration", wrap(m, m.previewProration, binder.JSON()))
	r.Get("/billing-overview", wrap(m, m.overview))

	r.Post("/checkout", wrap(m, m.checkout, binder.JSON()))
	r.Post("/renew", wrap(m, m.renew))
	r.Post("/cancel", wrap(m, m.cancel))
	r.Post("/resume", wrap(m, m.resume))

	if m.paymentCallbacks {
		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			path := binder.Path(chi.URLParam)
			r.Post("/confirm", wrap(m, m.confirmPayment, path))
			r.Post("/reject", wrap(m, m.rejectPayment, path))
		})
	}
	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...binder.Func) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errorHandler),
	)
}
