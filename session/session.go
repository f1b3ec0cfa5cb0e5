package session

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/codec"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
	"github.com/maida-ai/xcp/integrity"
	"github.com/maida-ai/xcp/schema"
)

// Handler processes an inbound data frame that is not a reply to a pending
// Request, returning the Ether to send back as the response (InReplyTo set
// to the inbound msg_id), or nil for no reply.
type Handler func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error)

// pendingCall is what a blocked Request/Ping waits on.
type pendingCall struct {
	header frame.Header
	value  *ether.Ether
	err    error
}

// Session multiplexes one XCP connection (§4.5). A single goroutine
// (recvLoop) owns all reads; writes are serialized by writeMu. Both the
// client and server side of a connection use the same type — grounded on
// the teacher's transport.ClientTransport (pending-channel multiplexing over
// a recvLoop goroutine) unified with server.Server.handleConn's
// goroutine-per-inbound-request dispatch.
type Session struct {
	conn net.Conn
	cfg  Config
	reg  *codec.Registry

	local  Capability
	remote Capability

	negotiated    map[xcp.CodecID]bool
	maxFrameBytes uint32

	state int32 // atomic, holds State

	nextMsgID uint64 // atomic
	channelID uint32

	writeMu sync.Mutex
	pending sync.Map // map[uint64]chan pendingCall

	dup *dupWindow
	asm *assemblyTable

	compressor integrity.Compressor
	aead       integrity.AEAD

	handler Handler

	closeOnce sync.Once
	closed    chan struct{}
}

// Open performs the handshake (HELLO/CAPS) and returns an opened Session.
// isClient selects which side sends HELLO first: the client sends HELLO and
// waits for CAPS; the server waits for HELLO and replies with CAPS (§4.5).
func Open(conn net.Conn, cfg Config, reg *codec.Registry, local Capability, handler Handler, isClient bool) (*Session, error) {
	s := &Session{
		conn:       conn,
		cfg:        cfg,
		reg:        reg,
		local:      local,
		dup:        newDupWindow(cfg.DupWindowSize),
		asm:        newAssemblyTable(cfg.MaxAssembledBytes, cfg.MaxInflightAssemblies),
		compressor: integrity.NewZstdCompressor(),
		aead:       integrity.ChaCha20Poly1305{},
		handler:    handler,
		closed:     make(chan struct{}),
	}
	atomic.StoreInt32(&s.state, int32(StateInit))

	var err error
	if isClient {
		err = s.clientHandshake()
	} else {
		err = s.serverHandshake()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	reg.Freeze()
	s.setState(StateOpen)
	go s.recvLoop()
	go s.expiryLoop()
	return s, nil
}

func (s *Session) setState(st State) { atomic.StoreInt32(&s.state, int32(st)) }
func (s *Session) State() State      { return State(atomic.LoadInt32(&s.state)) }

// Done returns a channel that is closed once the session has closed.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) clientHandshake() error {
	s.setState(StateHelloSent)
	if err := s.writeControl(xcp.MsgHello, s.local.toEther(), 0); err != nil {
		return fmt.Errorf("session: handshake: send HELLO: %w", err)
	}
	f, err := frame.Parse(s.conn, uint64(s.cfg.MaxFrameBytes))
	if err != nil {
		return fmt.Errorf("session: handshake: read CAPS: %w", err)
	}
	if f.Header.MsgType != uint16(xcp.MsgCaps) {
		return fmt.Errorf("%w: expected CAPS, got msg_type 0x%04x", ErrProtocolViolation, f.Header.MsgType)
	}
	e, err := s.decodeControlBody(f)
	if err != nil {
		return err
	}
	s.remote = capabilityFromEther(e)
	s.negotiate()
	s.setState(StateHelloReceived)
	return nil
}

func (s *Session) serverHandshake() error {
	f, err := frame.Parse(s.conn, uint64(s.cfg.MaxFrameBytes))
	if err != nil {
		return fmt.Errorf("session: handshake: read HELLO: %w", err)
	}
	if f.Header.MsgType != uint16(xcp.MsgHello) {
		return fmt.Errorf("%w: expected HELLO, got msg_type 0x%04x", ErrProtocolViolation, f.Header.MsgType)
	}
	e, err := s.decodeControlBody(f)
	if err != nil {
		return err
	}
	s.remote = capabilityFromEther(e)
	s.negotiate()
	s.setState(StateHelloReceived)
	if err := s.writeControl(xcp.MsgCaps, Capability{
		Codecs:        s.reg.IDs(),
		MaxFrameBytes: s.maxFrameBytes,
		Accepted:      s.local.Accepted,
		Emitted:       s.local.Emitted,
		SharedMem:     s.local.SharedMem,
	}.toEther(), 0); err != nil {
		return fmt.Errorf("session: handshake: send CAPS: %w", err)
	}
	return nil
}

// negotiate computes the codec-set intersection and min(max_frame_bytes)
// between local and remote capabilities (§4.5 "Capability negotiation").
func (s *Session) negotiate() {
	localSet := s.local.codecSet()
	remoteSet := s.remote.codecSet()
	s.negotiated = make(map[xcp.CodecID]bool)
	for id := range localSet {
		if remoteSet[id] {
			s.negotiated[id] = true
		}
	}
	mx := s.local.MaxFrameBytes
	if s.remote.MaxFrameBytes != 0 && s.remote.MaxFrameBytes < mx {
		mx = s.remote.MaxFrameBytes
	}
	if mx == 0 {
		mx = s.cfg.MaxFrameBytes
	}
	s.maxFrameBytes = mx
}

// schemaAccepted reports whether k falls within one of the locally
// advertised accepted ranges (§4.5 "Unknown schema key"). An empty Accepted
// list means no restriction was declared, so everything is accepted.
func (s *Session) schemaAccepted(k schema.Key) bool {
	if len(s.local.Accepted) == 0 {
		return true
	}
	for _, r := range s.local.Accepted {
		if r.Accepts(k) {
			return true
		}
	}
	return false
}

// writeControl encodes e with the JSON codec (always available, even before
// negotiation completes) and writes a control frame under a freshly
// allocated msg_id.
func (s *Session) writeControl(mt xcp.MsgType, e *ether.Ether, inReplyTo uint64) error {
	return s.writeControlWithID(mt, e, s.allocMsgID(), inReplyTo)
}

// writeControlWithID is writeControl for a caller that must know the msg_id
// in advance, such as Ping registering a pending entry before sending.
func (s *Session) writeControlWithID(mt xcp.MsgType, e *ether.Ether, msgID, inReplyTo uint64) error {
	jc, _ := s.reg.Lookup(xcp.CodecJSON)
	body, err := jc.Encode(e)
	if err != nil {
		return err
	}
	h := frame.Header{
		ChannelID: s.channelID,
		MsgType:   uint16(mt),
		BodyCodec: uint16(xcp.CodecJSON),
		MsgID:     msgID,
		InReplyTo: inReplyTo,
	}
	buf, err := frame.Pack(h, body, 0)
	if err != nil {
		return err
	}
	return s.writeRaw(buf)
}

func (s *Session) decodeControlBody(f *frame.Frame) (*ether.Ether, error) {
	jc, _ := s.reg.Lookup(xcp.CodecJSON)
	return jc.Decode(f.Payload)
}

func (s *Session) writeRaw(buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(buf)
	return err
}

func (s *Session) allocMsgID() uint64 {
	return atomic.AddUint64(&s.nextMsgID, 1)
}

// Send transmits e as a data message under schemaKey, chunking as needed,
// and returns the msg_id assigned to it. It does not wait for a reply; use
// Request for request/response correlation.
func (s *Session) Send(ctx context.Context, schemaKey schema.Key, msgType xcp.MsgType, e *ether.Ether) (uint64, error) {
	if s.State() != StateOpen {
		return 0, ErrSessionClosed
	}
	if err := e.Validate(); err != nil {
		return 0, err
	}
	msgID := s.allocMsgID()
	if err := s.sendEther(schemaKey, msgType, msgID, 0, e); err != nil {
		return 0, err
	}
	return msgID, nil
}

// sendEther implements the send-side transform pipeline (§4.4): encode,
// optionally compress, optionally encrypt, then chunk the transformed bytes
// across frames bounded by the negotiated max_frame_bytes. CRYPT is sealed
// once over the whole logical message; chunking only splits the resulting
// ciphertext across physical frames, it never re-seals per chunk.
func (s *Session) sendEther(schemaKey schema.Key, msgType xcp.MsgType, msgID, inReplyTo uint64, e *ether.Ether) error {
	c, err := codec.Select(s.reg, s.negotiated, e, xcp.CodecPolicy(s.cfg.CodecPolicy))
	if err != nil {
		return err
	}
	body, err := c.Encode(e)
	if err != nil {
		return err
	}

	var flags byte
	if s.cfg.Compression {
		body, err = s.compressor.Compress(body)
		if err != nil {
			return fmt.Errorf("session: compress: %w", err)
		}
		flags |= xcp.FlagCompressed
	}
	if s.cfg.AEADStaticKey != nil {
		body, err = s.aead.Seal(s.cfg.AEADStaticKey, nil, body, msgID, s.channelID)
		if err != nil {
			return fmt.Errorf("session: seal: %w", err)
		}
		flags |= xcp.FlagEncrypted
	}

	h := frame.Header{
		ChannelID: s.channelID,
		MsgType:   uint16(msgType),
		BodyCodec: uint16(c.ID()),
		SchemaKey: schemaKey,
		MsgID:     msgID,
		InReplyTo: inReplyTo,
	}

	maxChunk := int(s.maxFrameBytes)
	if maxChunk <= 0 {
		maxChunk = len(body)
	}
	if len(body) <= maxChunk {
		buf, err := frame.Pack(h, body, flags)
		if err != nil {
			return err
		}
		return s.writeRaw(buf)
	}

	for off := 0; off < len(body); off += maxChunk {
		end := off + maxChunk
		if end > len(body) {
			end = len(body)
		}
		chunkFlags := flags
		if end < len(body) {
			chunkFlags |= xcp.FlagMore
		}
		buf, err := frame.Pack(h, body[off:end], chunkFlags)
		if err != nil {
			return err
		}
		if err := s.writeRaw(buf); err != nil {
			return err
		}
	}
	return nil
}

// Request sends e and blocks until a reply with in_reply_to == the assigned
// msg_id arrives. It retries with the same msg_id both on a local timeout
// and, per §4.5, when a NACK carries retry_after_ms — in the latter case it
// waits retry_after_ms plus jitter(base·2^attempt) before resending.
func (s *Session) Request(ctx context.Context, schemaKey schema.Key, msgType xcp.MsgType, e *ether.Ether) (*ether.Ether, error) {
	if s.State() != StateOpen {
		return nil, ErrSessionClosed
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	msgID := s.allocMsgID()

	ch := make(chan pendingCall, 1)
	s.pending.Store(msgID, ch)
	defer s.pending.Delete(msgID)

	backoff := time.Duration(s.cfg.RetryBaseMs) * time.Millisecond
	attempts := s.cfg.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := s.sendEther(schemaKey, msgType, msgID, 0, e); err != nil {
			return nil, err
		}
		select {
		case pc := <-ch:
			if pc.err == nil {
				return pc.value, nil
			}
			ne, ok := pc.err.(*NackError)
			if !ok || ne.RetryAfterMs < 0 || attempt >= attempts-1 {
				return nil, pc.err
			}
			capAttempt := attempt
			if capAttempt > 6 {
				capAttempt = 6
			}
			jitterBase := time.Duration(s.cfg.RetryBaseMs) * time.Millisecond * time.Duration(int64(1)<<uint(capAttempt))
			wait := time.Duration(ne.RetryAfterMs)*time.Millisecond + jitter(jitterBase)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.closed:
				return nil, ErrSessionClosed
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrSessionClosed
		case <-time.After(backoff):
			backoff += jitter(backoff)
			continue
		}
	}
	return nil, ErrDeliveryFailed
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(d)/2 + 1))
}

// Ack sends an acknowledgement for an inbound msg_id (§4.6).
func (s *Session) Ack(inReplyTo uint64) error {
	e := &ether.Ether{Kind: "ack", SchemaVersion: 1, Payload: map[string]ether.Value{}, Metadata: map[string]ether.Value{}}
	return s.writeControl(xcp.MsgAck, e, inReplyTo)
}

// Nack sends a negative acknowledgement carrying code and an optional
// retry_after_ms (<0 to omit) for an inbound msg_id (§4.6).
func (s *Session) Nack(inReplyTo uint64, code xcp.ErrorCode, retryAfterMs int64) error {
	payload := map[string]ether.Value{
		"code": ether.Int(int64(code)),
	}
	if retryAfterMs >= 0 {
		payload["retry_after_ms"] = ether.Int(retryAfterMs)
	}
	e := &ether.Ether{Kind: "nack", SchemaVersion: 1, Payload: payload, Metadata: map[string]ether.Value{}}
	return s.writeControl(xcp.MsgNack, e, inReplyTo)
}

// Ping sends a PING carrying a nonce and blocks for the matching PONG,
// returning the measured round-trip latency.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	if s.State() != StateOpen {
		return 0, ErrSessionClosed
	}
	nonce := rand.Uint64()
	msgID := s.allocMsgID()
	ch := make(chan pendingCall, 1)
	s.pending.Store(msgID, ch)
	defer s.pending.Delete(msgID)

	e := &ether.Ether{
		Kind:          "ping",
		SchemaVersion: 1,
		Payload:       map[string]ether.Value{"nonce": ether.Int(int64(nonce))},
		Metadata:      map[string]ether.Value{},
	}
	start := time.Now()
	if err := s.writeControlWithID(xcp.MsgPing, e, msgID, 0); err != nil {
		return 0, err
	}
	select {
	case pc := <-ch:
		if pc.err != nil {
			return 0, pc.err
		}
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.cfg.PingTimeout):
		return 0, ErrTimeout
	case <-s.closed:
		return 0, ErrSessionClosed
	}
}

// Close transitions the session to CLOSING then CLOSED, releases all
// pending calls and in-flight assemblies, and closes the connection.
// Idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		close(s.closed)
		s.pending.Range(func(key, value any) bool {
			ch := value.(chan pendingCall)
			select {
			case ch <- pendingCall{err: ErrSessionClosed}:
			default:
			}
			return true
		})
		s.asm.mu.Lock()
		s.asm.byMsgID = make(map[uint64]*assembly)
		s.asm.mu.Unlock()
		err = s.conn.Close()
		s.setState(StateClosed)
	})
	return err
}

// expiryLoop periodically releases reassemblies that have stalled past
// AssemblyTimeout (§6).
func (s *Session) expiryLoop() {
	if s.cfg.AssemblyTimeout <= 0 {
		return
	}
	t := time.NewTicker(s.cfg.AssemblyTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-t.C:
			s.asm.ExpireOlderThan(s.cfg.AssemblyTimeout)
		}
	}
}

// recvLoop is the single reading goroutine for this connection (§4.5): it
// parses frames, reverses the transform pipeline, reassembles chunked
// messages, suppresses duplicates, and either routes a reply to a pending
// caller or dispatches an inbound message to Handler in its own goroutine —
// mirroring the teacher's handleConn/handleRequest split.
func (s *Session) recvLoop() {
	for {
		f, err := frame.Parse(s.conn, uint64(s.maxFrameBytes))
		if err != nil {
			s.Close()
			return
		}

		more := f.Flags&xcp.FlagMore != 0
		body, morePending, err := s.asm.Append(f, more)
		if err != nil {
			continue
		}
		if morePending {
			continue
		}

		if s.dup.SeenBefore(f.Header.MsgID) {
			s.Ack(f.Header.MsgID)
			continue
		}

		if f.Flags&xcp.FlagEncrypted != 0 {
			body, err = s.aead.Open(s.cfg.AEADStaticKey, nil, body, f.Header.MsgID, f.Header.ChannelID)
			if err != nil {
				s.Nack(f.Header.MsgID, xcp.ErrSchemaUnknown, -1)
				continue
			}
		}
		if f.Flags&xcp.FlagCompressed != 0 {
			body, err = s.compressor.Decompress(body)
			if err != nil {
				s.Nack(f.Header.MsgID, xcp.ErrSchemaUnknown, -1)
				continue
			}
		}

		mt := xcp.MsgType(f.Header.MsgType)

		switch mt {
		case xcp.MsgPong, xcp.MsgAck, xcp.MsgNack:
			s.deliverControl(f.Header, body, mt)
			continue
		case xcp.MsgPing:
			go s.replyPong(f.Header, body)
			continue
		case xcp.MsgHello, xcp.MsgCaps, xcp.MsgClarifyReq, xcp.MsgClarifyRes:
			continue
		}

		if !s.schemaAccepted(f.Header.SchemaKey) {
			s.Nack(f.Header.MsgID, xcp.ErrSchemaUnknown, -1)
			continue
		}

		c, ok := s.reg.Lookup(xcp.CodecID(f.Header.BodyCodec))
		if !ok {
			s.Nack(f.Header.MsgID, xcp.ErrCodecUnsupported, -1)
			continue
		}
		e, err := c.Decode(body)
		if err != nil {
			s.Nack(f.Header.MsgID, xcp.ErrSchemaUnknown, -1)
			continue
		}

		if f.Header.InReplyTo != 0 {
			if chAny, ok := s.pending.Load(f.Header.InReplyTo); ok {
				ch := chAny.(chan pendingCall)
				select {
				case ch <- pendingCall{header: f.Header, value: e}:
				default:
				}
				continue
			}
		}

		if s.handler != nil {
			go s.dispatch(f.Header, e)
		}
	}
}

func (s *Session) dispatch(h frame.Header, e *ether.Ether) {
	resp, err := s.handler(context.Background(), h, e)
	if err != nil {
		s.Nack(h.MsgID, xcp.ErrKindMismatch, -1)
		return
	}
	if resp == nil {
		s.Ack(h.MsgID)
		return
	}
	_ = s.sendEther(h.SchemaKey, xcp.MsgDataMin, s.allocMsgID(), h.MsgID, resp)
}

func (s *Session) deliverControl(h frame.Header, body []byte, mt xcp.MsgType) {
	jc, _ := s.reg.Lookup(xcp.CodecJSON)
	e, err := jc.Decode(body)
	if err != nil {
		return
	}
	if chAny, ok := s.pending.Load(h.InReplyTo); ok {
		ch := chAny.(chan pendingCall)
		pc := pendingCall{header: h, value: e}
		if mt == xcp.MsgNack {
			code, retry := nackFromEther(e)
			pc.err = &NackError{Code: uint16(code), RetryAfterMs: retry}
		}
		select {
		case ch <- pc:
		default:
		}
	}
}

func nackFromEther(e *ether.Ether) (xcp.ErrorCode, int64) {
	var code xcp.ErrorCode
	retry := int64(-1)
	if v, ok := e.Payload["code"]; ok {
		if i, ok := v.AsInt(); ok {
			code = xcp.ErrorCode(i)
		}
	}
	if v, ok := e.Payload["retry_after_ms"]; ok {
		if i, ok := v.AsInt(); ok {
			retry = i
		}
	}
	return code, retry
}

func (s *Session) replyPong(h frame.Header, body []byte) {
	jc, _ := s.reg.Lookup(xcp.CodecJSON)
	e, err := jc.Decode(body)
	if err != nil {
		return
	}
	_ = s.writeControl(xcp.MsgPong, e, h.MsgID)
}
