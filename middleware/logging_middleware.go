package middleware

import (
	"context"
	"log"
	"time"

	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
)

// LoggingMiddleware records the message kind, msg_type, duration, and any
// error for each inbound message handled.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
			start := time.Now()
			resp, err := next(ctx, h, e)
			duration := time.Since(start)
			log.Printf("kind=%s msg_type=0x%04x msg_id=%d duration=%s", e.Kind, h.MsgType, h.MsgID, duration)
			if err != nil {
				log.Printf("msg_id=%d error: %v", h.MsgID, err)
			}
			return resp, err
		}
	}
}
