// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a Context and a request struct filled by binders
// from pkg/binder, and returns a Response. Wrap turns it into an
// http.HandlerFunc:
//
//	type quoteRequest struct {
//		Properties int    `json:"properties" query:"properties"`
//		Period     string `json:"period" query:"period"`
//	}
//
//	func quote(ctx handler.Context, req quoteRequest) handler.Response {
//		q, err := svc.Quote(ctx, userID, billing.QuoteRequest{...})
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(q)
//	}
//
//	r.Post("/pricing/calculate", handler.Wrap(quote,
//		handler.WithBinders[handler.Context, quoteRequest](binder.JSON(), binder.Query()),
//		handler.WithErrorHandler[handler.Context, quoteRequest](errHandler),
//	))
//
// Errors returned from binders, from Render or through Error are passed to
// the ErrorHandler. NewErrorHandler writes them as a JSON envelope whose
// status comes from HTTPError, ValidationError or a caller supplied
// ErrorMapper.
package handler
