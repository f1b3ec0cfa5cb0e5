package session

import "errors"

// Session-level and per-call errors from §7.
var (
	ErrSessionClosed       = errors.New("session: closed")
	ErrTimeout             = errors.New("session: timeout")
	ErrDeliveryFailed      = errors.New("session: delivery failed after retries")
	ErrNegotiationFailed   = errors.New("session: capability negotiation produced an empty intersection")
	ErrProtocolViolation   = errors.New("session: protocol violation")
	ErrAssemblyTooLarge    = errors.New("session: assembly exceeds max_assembled_bytes")
	ErrTooManyAssemblies   = errors.New("session: max_inflight_assemblies exceeded")
)

// NackError wraps a NACK received in response to a request, carrying the
// numeric error code and optional retry_after_ms (§4.6, §7).
type NackError struct {
	Code         uint16
	RetryAfterMs int64 // -1 if absent
}

func (e *NackError) Error() string {
	return "session: nack"
}
