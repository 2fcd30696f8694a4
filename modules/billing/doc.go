// Package billing mounts the billing HTTP API on a chi router.
//
//	mod := billing.New(svc, billing.HeaderUserResolver("X-User-ID"),
//		billing.WithLogger(log),
//	)
//	r.Mount("/billing", mod.Handle())
//
// Routes:
//
//	GET  /plans                   visible plan catalog
//	GET  /pricing/calculate       quote for ?properties=&period=&couponCode=
//	POST /pricing/calculate       same, JSON body
//	POST /validate-plan-change    whether the user may switch to a plan/period
//	POST /preview-proration       credit and amount due for a switch
//	GET  /billing-overview        dashboard summary
//	POST /checkout                issue a pending invoice
//	POST /renew                   issue the next-cycle invoice
//	POST /cancel                  stop renewal at period end
//	POST /resume                  undo a cancellation
//	POST /invoices/{invoiceID}/confirm
//	POST /invoices/{invoiceID}/reject
//
// The invoice callbacks are meant for the payment integration and should be
// mounted behind its authentication; see WithoutPaymentCallbacks.
package billing
