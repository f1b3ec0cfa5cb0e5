package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/codec"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
	"github.com/maida-ai/xcp/schema"
)

func TestNegotiateIntersectsCodecsAndMinimizesMaxFrameBytes(t *testing.T) {
	s := &Session{
		cfg:   Config{MaxFrameBytes: 1024},
		local: Capability{Codecs: []xcp.CodecID{xcp.CodecJSON, xcp.CodecBinaryStruct}, MaxFrameBytes: 8192},
		remote: Capability{Codecs: []xcp.CodecID{xcp.CodecJSON, xcp.CodecTensorF32}, MaxFrameBytes: 4096},
	}
	s.negotiate()

	if !s.negotiated[xcp.CodecJSON] {
		t.Fatal("expect JSON in the negotiated intersection")
	}
	if s.negotiated[xcp.CodecBinaryStruct] || s.negotiated[xcp.CodecTensorF32] {
		t.Fatal("expect codecs only present on one side to be excluded")
	}
	if s.maxFrameBytes != 4096 {
		t.Fatalf("expect min(max_frame_bytes) == 4096, got %d", s.maxFrameBytes)
	}
}

func TestNegotiateFallsBackToConfigWhenBothZero(t *testing.T) {
	s := &Session{
		cfg:    Config{MaxFrameBytes: 2048},
		local:  Capability{Codecs: []xcp.CodecID{xcp.CodecJSON}},
		remote: Capability{Codecs: []xcp.CodecID{xcp.CodecJSON}},
	}
	s.negotiate()
	if s.maxFrameBytes != 2048 {
		t.Fatalf("expect fallback to cfg.MaxFrameBytes, got %d", s.maxFrameBytes)
	}
}

func testCapability(reg *codec.Registry) Capability {
	return Capability{Codecs: reg.IDs(), MaxFrameBytes: 65536}
}

func openPair(t *testing.T, handler Handler) (*Session, *Session) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	cfg := DefaultConfig()
	cfg.RetryBaseMs = 20
	cfg.PingTimeout = 2 * time.Second

	type result struct {
		s   *Session
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		reg := codec.NewRegistry()
		s, err := Open(clientConn, cfg, reg, testCapability(reg), nil, true)
		clientCh <- result{s, err}
	}()
	go func() {
		reg := codec.NewRegistry()
		s, err := Open(serverConn, cfg, reg, testCapability(reg), handler, false)
		serverCh <- result{s, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	if cr.err != nil {
		t.Fatalf("client Open: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("server Open: %v", sr.err)
	}
	return cr.s, sr.s
}

func TestOpenHandshakeReachesStateOpen(t *testing.T) {
	client, server := openPair(t, nil)
	defer client.Close()
	defer server.Close()

	if client.State() != StateOpen {
		t.Fatalf("expect client StateOpen, got %v", client.State())
	}
	if server.State() != StateOpen {
		t.Fatalf("expect server StateOpen, got %v", server.State())
	}
}

func TestRequestReplyRoundTrip(t *testing.T) {
	echo := func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
		return &ether.Ether{
			Kind:          "reply",
			SchemaVersion: 1,
			Payload:       map[string]ether.Value{"echo": e.Payload["text"]},
			Metadata:      map[string]ether.Value{},
		}, nil
	}
	client, server := openPair(t, echo)
	defer client.Close()
	defer server.Close()

	req := &ether.Ether{
		Kind:          "greeting",
		SchemaVersion: 1,
		Payload:       map[string]ether.Value{"text": ether.String("hi")},
		Metadata:      map[string]ether.Value{},
	}
	key := schema.New("agents.chat", "greeting", 1, 0, []byte(`{}`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Request(ctx, key, xcp.MsgDataMin, req)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, ok := resp.Payload["echo"].AsString()
	if !ok || got != "hi" {
		t.Fatalf("expect echoed text 'hi', got %+v", resp.Payload)
	}
}

func TestPingPong(t *testing.T) {
	client, server := openPair(t, nil)
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rtt, err := client.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if rtt < 0 {
		t.Fatalf("expect non-negative round trip time, got %v", rtt)
	}
}

func TestSendWithoutReplyDeliversToHandler(t *testing.T) {
	received := make(chan *ether.Ether, 1)
	handler := func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
		received <- e
		return nil, nil
	}
	client, server := openPair(t, handler)
	defer client.Close()
	defer server.Close()

	e := &ether.Ether{
		Kind:          "note",
		SchemaVersion: 1,
		Payload:       map[string]ether.Value{"text": ether.String("fyi")},
		Metadata:      map[string]ether.Value{},
	}
	key := schema.New("agents.chat", "note", 1, 0, []byte(`{}`))
	if _, err := client.Send(context.Background(), key, xcp.MsgDataMin, e); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		text, _ := got.Payload["text"].AsString()
		if text != "fyi" {
			t.Fatalf("expect delivered payload text 'fyi', got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler delivery")
	}
}

func TestCloseIsIdempotentAndRejectsSend(t *testing.T) {
	client, server := openPair(t, nil)
	defer server.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if client.State() != StateClosed {
		t.Fatalf("expect StateClosed, got %v", client.State())
	}

	key := schema.New("agents.chat", "note", 1, 0, []byte(`{}`))
	if _, err := client.Send(context.Background(), key, xcp.MsgDataMin, &ether.Ether{Kind: "x", SchemaVersion: 1, Payload: map[string]ether.Value{}, Metadata: map[string]ether.Value{}}); err != ErrSessionClosed {
		t.Fatalf("expect ErrSessionClosed after Close, got %v", err)
	}
}
