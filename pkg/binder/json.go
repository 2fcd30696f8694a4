package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxJSONSize caps JSON request bodies.
const MaxJSONSize = 1 << 20

// Func binds r into v, which must be a pointer to a struct.
type Func func(r *http.Request, v any) error

// JSON decodes the request body. GET, HEAD and DELETE requests, and requests
// with an empty body, are reported as ErrNotApplicable.
func JSON() Func {
	return func(r *http.Request, v any) error {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodDelete:
			return ErrNotApplicable
		}
		if r.Body == nil || r.ContentLength == 0 {
			return ErrNotApplicable
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONSize+1))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrNotApplicable
			}
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}
		if dec.InputOffset() > MaxJSONSize {
			return fmt.Errorf("%w: request body too large (max %d bytes)", ErrFailedToParseJSON, MaxJSONSize)
		}
		if dec.More() {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}

// Query binds URL query parameters. Requests without a query string are
// reported as ErrNotApplicable.
func Query() Func {
	return func(r *http.Request, v any) error {
		if r.URL.RawQuery == "" {
			return ErrNotApplicable
		}
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}

// Path binds path parameters looked up through extractor.
func Path(extractor func(r *http.Request, name string) string) Func {
	if extractor == nil {
		panic("binder: nil path extractor")
	}
	return func(r *http.Request, v any) error {
		return bindFields(v, "path", func(name string) []string {
			if val := extractor(r, name); val != "" {
				return []string{val}
			}
			return nil
		}, ErrFailedToParsePath)
	}
}
