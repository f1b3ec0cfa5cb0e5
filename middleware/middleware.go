// Package middleware implements the onion-model interceptor chain that
// wraps an XCP inbound-message handler with cross-cutting concerns
// (logging, timeout, rate limiting, retry) without modifying the handler
// itself.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
)

// HandlerFunc processes one inbound message and produces the Ether to send
// back (or nil for no reply), matching session.Handler's shape.
type HandlerFunc func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error)

// Middleware wraps a HandlerFunc to add behavior around it.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, with the first in the list as the
// outermost layer (executed first on request, last on response).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
