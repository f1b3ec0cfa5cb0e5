package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
)

// TimeOutMiddleware bounds how long a handler may take. The handler
// goroutine is not cancelled when the timeout fires — the context passed
// to it carries the deadline, but the handler must check ctx.Done() itself
// to actually stop work.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp *ether.Ether
				err  error
			}
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, h, e)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, fmt.Errorf("middleware: handler timed out after %s", timeout)
			}
		}
	}
}
