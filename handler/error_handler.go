package handler

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/dmitrymomot/hostkit/pkg/binder"
	"github.com/dmitrymomot/hostkit/pkg/logger"
	"github.com/dmitrymomot/hostkit/pkg/requestid"
)

// ErrorMapper translates domain errors into HTTPError. It reports false for
// errors it does not know.
type ErrorMapper func(err error) (HTTPError, bool)

// classify resolves the status and body for err. Binder failures and
// validation errors take precedence over the mapper.
func classify(err error, mapper ErrorMapper) (int, *ErrorDetail) {
	var (
		httpErr HTTPError
		valErr  ValidationError
	)
	switch {
	case errors.As(err, &valErr):
		details := make(map[string][]string, len(valErr))
		maps.Copy(details, valErr)
		return http.StatusUnprocessableEntity, &ErrorDetail{
			Code:    "validation_error",
			Message: valErr.Error(),
			Details: details,
		}
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		httpErr = NewHTTPError(http.StatusUnsupportedMediaType, ErrUnsupportedMedia.Key, err.Error())
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		httpErr = NewHTTPError(http.StatusBadRequest, ErrBadRequest.Key, err.Error())
	case errors.As(err, &httpErr):
	default:
		mapped := false
		if mapper != nil {
			httpErr, mapped = mapper(err)
		}
		if !mapped {
			httpErr = ErrInternalServerError
		}
	}

	message := httpErr.Message
	if message == "" {
		message = http.StatusText(httpErr.Code)
	}
	return httpErr.Code, &ErrorDetail{Code: httpErr.Key, Message: message}
}

// NewErrorHandler returns an ErrorHandler writing JSON error envelopes.
// Server errors are logged at error level, client errors at debug.
func NewErrorHandler(log *slog.Logger, mapper ErrorMapper) ErrorHandler[Context] {
	if log == nil {
		log = logger.Discard()
	}
	return func(ctx Context, err error) {
		r := ctx.Request()
		status, detail := classify(err, mapper)

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(r.Context(), level, "request failed",
			logger.Error(err),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if id := requestid.FromContext(r.Context()); id != "" {
			ctx.ResponseWriter().Header().Set(requestid.Header, id)
		}
		if werr := writeJSON(ctx.ResponseWriter(), status, envelope{Error: detail}); werr != nil {
			log.WarnContext(r.Context(), "failed to write error response", logger.Error(werr))
		}
	}
}
