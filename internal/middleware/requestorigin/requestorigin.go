// Package requestorigin provides utilities to inject the origin and referer of
// the original request in the context and to retrieve them.
package requestorigin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Using an unexported type prevents key collisions from other packages.
type contextKey string

const (
	OriginKey  contextKey = "origin"
	RefererKey contextKey = "referer"
)

// Middleware is an http.Handler middleware that injects the Origin and Referer
// headers of the request into the context. Requests without an Origin header
// fall back to the scheme and host of the Referer.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer := r.Header.Get("Referer")

		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" {
			origin = originFromReferer(referer)
		}

		ctx := r.Context()
		if origin != "" {
			ctx = context.WithValue(ctx, OriginKey, origin)
		}
		ctx = context.WithValue(ctx, RefererKey, referer)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OriginFromContext returns the origin stored by Middleware.
func OriginFromContext(ctx context.Context) (string, error) {
	origin, ok := ctx.Value(OriginKey).(string)
	if !ok {
		return "", errors.New("origin not found in context")
	}
	return origin, nil
}

// RefererFromContext returns the referer stored by Middleware or an empty
// string.
func RefererFromContext(ctx context.Context) string {
	referer, _ := ctx.Value(RefererKey).(string)
	return referer
}

// originFromReferer keeps the scheme and host of the referer and drops the
// path, query and fragment.
func originFromReferer(referer string) string {
	if referer == "" {
		return ""
	}

	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}
