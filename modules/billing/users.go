package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/hostkit/handler"
)

// UserResolver identifies the authenticated user of a request.
type UserResolver interface {
	UserID(r *http.Request) (uuid.UUID, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(r *http.Request) (uuid.UUID, error)

func (f UserResolverFunc) UserID(r *http.Request) (uuid.UUID, error) { return f(r) }

// HeaderUserResolver trusts a user ID header set by an upstream gateway.
func HeaderUserResolver(header string) UserResolver {
	return UserResolverFunc(func(r *http.Request) (uuid.UUID, error) {
		raw := r.Header.Get(header)
		if raw == "" {
			return uuid.Nil, handler.ErrUnauthorized
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, handler.ErrUnauthorized
		}
		return id, nil
	})
}
