// Package session implements the XCP session engine (§4.5): handshake and
// capability negotiation, msg_id allocation and correlation, chunked send
// and reassembly, duplicate suppression, retries, and the connection state
// machine.
//
// Grounded on the teacher's transport.ClientTransport (multiplexing over a
// single connection via a sequence-keyed pending map and a dedicated
// recvLoop goroutine) and server.Server.handleConn/handleRequest (a single
// reading goroutine dispatching each request to its own goroutine), unified
// here into one type used by both ends of a connection — the spec's "client
// and server share the core" (§4.5).
package session

import "time"

// Config holds the negotiable/tunable options of §6's configuration table.
type Config struct {
	MaxFrameBytes         uint32        // upper bound on a single frame's payload
	MaxAssembledBytes     uint64        // upper bound on reassembled message size
	AssemblyTimeout       time.Duration // expiry for stalled reassemblies
	DupWindowSize         int           // sliding window size for duplicate suppression
	CodecPolicy           int           // 0=Auto,1=JsonOnly,2=BinaryRequired (xcp.CodecPolicy)
	MaxInflightAssemblies int           // cap on concurrent reassemblies
	RetryBaseMs           int           // retry/backoff base, milliseconds
	RetryMaxAttempts      int           // retry/backoff max attempts
	PingTimeout           time.Duration // ping() call timeout
	Compression           bool          // enable COMP flag + zstd pipeline
	AEADStaticKey         []byte        // enable CRYPT flag + ChaCha20-Poly1305 when non-nil
}

// DefaultConfig returns the defaults named throughout §4.5/§6.
func DefaultConfig() Config {
	return Config{
		MaxFrameBytes:         4 * 1024 * 1024,
		MaxAssembledBytes:     256 * 1024 * 1024,
		AssemblyTimeout:       30 * time.Second,
		DupWindowSize:         4096,
		CodecPolicy:           0,
		MaxInflightAssemblies: 1024,
		RetryBaseMs:           50,
		RetryMaxAttempts:      3,
		PingTimeout:           1 * time.Second,
	}
}
