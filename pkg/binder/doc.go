// Package binder decodes HTTP requests into typed structs.
//
//   - JSON decodes a strict application/json body (unknown fields rejected,
//     1 MiB limit). Requests without a body-carrying method are skipped.
//   - Query fills fields tagged `query:"name"` from the URL query string.
//   - Path fills fields tagged `path:"name"` through a router extractor such
//     as chi.URLParam.
//
// Binders return ErrNotApplicable when a request has nothing for them, so
// several can be chained over the same target.
package binder
