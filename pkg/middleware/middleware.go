// Package middleware provides an ordered HTTP middleware stack together with the
// CORS, correlation, panic recovery and request logging middleware used by the API.
package middleware

import "net/http"

// System manages an ordered stack of HTTP middleware.
type System interface {
	Use(mw ...func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

type mw struct {
	stack []func(http.Handler) http.Handler
}

// New creates a middleware System seeded with mws in outermost-first order.
func New(mws ...func(http.Handler) http.Handler) System {
	return &mw{
		stack: append([]func(http.Handler) http.Handler{}, mws...),
	}
}

func (m *mw) Use(fns ...func(http.Handler) http.Handler) {
	m.stack = append(m.stack, fns...)
}

// Apply wraps handler so the first registered middleware runs first.
func (m *mw) Apply(handler http.Handler) http.Handler {
	for i := len(m.stack) - 1; i >= 0; i-- {
		handler = m.stack[i](handler)
	}
	return handler
}
