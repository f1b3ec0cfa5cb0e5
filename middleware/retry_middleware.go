package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
)

// RetryMiddleware re-invokes next up to maxRetries times, with exponential
// backoff, when it fails with a transient-looking error (timeout or
// connection refused). Any other error is returned immediately.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
			resp, err := next(ctx, h, e)
			for i := 0; i < maxRetries; i++ {
				if err == nil {
					return resp, nil
				}
				if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "connection refused") {
					return resp, err
				}
				log.Printf("retry attempt %d for msg_id=%d due to: %v", i+1, h.MsgID, err)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp, err = next(ctx, h, e)
			}
			return resp, err
		}
	}
}
