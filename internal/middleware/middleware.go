// Package middleware provides the HTTP middleware stack for the API
// role: panic recovery, request logging, security headers, CORS, and
// per-client rate limiting. The worker role has no HTTP surface and
// does not use this package.
package middleware

import (
	"context"
	"net/http"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(next http.Handler) http.Handler

// Chain is an ordered middleware stack. The first middleware added is
// the outermost wrapper at request time.
type Chain struct {
	stack []Middleware
}

// NewChain builds a chain from the given middleware, outermost first.
func NewChain(mw ...Middleware) Chain {
	return Chain{stack: append([]Middleware(nil), mw...)}
}

// Use returns a new chain with mw appended inside the existing stack.
func (c Chain) Use(mw ...Middleware) Chain {
	stack := make([]Middleware, 0, len(c.stack)+len(mw))
	stack = append(stack, c.stack...)
	stack = append(stack, mw...)
	return Chain{stack: stack}
}

// Then wraps h in the whole chain.
func (c Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		h = c.stack[i](h)
	}
	return h
}

// ThenFunc wraps a handler function in the whole chain.
func (c Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	return c.Then(fn)
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request id stamped by the logging
// middleware, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// statusWriter captures the status code and body size written by the
// wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}
