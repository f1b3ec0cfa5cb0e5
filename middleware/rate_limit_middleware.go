package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
)

// RateLimitMiddleware applies a token-bucket limit (r tokens/sec, burst
// capacity burst) shared across every message handled by the wrapped chain.
// The limiter is created once, in the outer closure — creating it per
// request would hand every request a fresh full bucket.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
			if !limiter.Allow() {
				return nil, fmt.Errorf("middleware: rate limit exceeded")
			}
			return next(ctx, h, e)
		}
	}
}
