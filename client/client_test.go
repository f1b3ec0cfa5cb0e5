package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/codec"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
	"github.com/maida-ai/xcp/loadbalance"
	"github.com/maida-ai/xcp/peerdir"
	"github.com/maida-ai/xcp/schema"
	"github.com/maida-ai/xcp/server"
	"github.com/maida-ai/xcp/session"
)

func startEchoServer(t *testing.T) string {
	t.Helper()
	reg := codec.NewRegistry()
	local := session.Capability{Codecs: reg.IDs(), MaxFrameBytes: 65536}
	svr := server.NewServer(session.DefaultConfig(), reg, local)
	svr.Register("ping", func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
		return &ether.Ether{
			Kind:          "pong",
			SchemaVersion: 1,
			Payload:       map[string]ether.Value{"n": e.Payload["n"]},
			Metadata:      map[string]ether.Value{},
		}, nil
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	go svr.Serve("tcp", addr, addr, "workers", nil)
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { svr.Shutdown(2 * time.Second) })
	return addr
}

func newTestClient() *Client {
	reg := codec.NewRegistry()
	local := session.Capability{Codecs: reg.IDs(), MaxFrameBytes: 65536}
	cfg := session.DefaultConfig()
	cfg.RetryBaseMs = 20
	return NewClient(nil, nil, cfg, reg, local, nil)
}

func TestClientCallAddr(t *testing.T) {
	addr := startEchoServer(t)
	c := newTestClient()
	defer c.Close()

	req := &ether.Ether{
		Kind:          "ping",
		SchemaVersion: 1,
		Payload:       map[string]ether.Value{"n": ether.Int(7)},
		Metadata:      map[string]ether.Value{},
	}
	key := schema.New("agents.chat", "ping", 1, 0, []byte(`{}`))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.CallAddr(ctx, addr, key, xcp.MsgDataMin, req)
	if err != nil {
		t.Fatalf("CallAddr: %v", err)
	}
	n, _ := resp.Payload["n"].AsInt()
	if n != 7 {
		t.Fatalf("expect echoed n=7, got %d", n)
	}
}

func TestClientCallAddrReusesSession(t *testing.T) {
	addr := startEchoServer(t)
	c := newTestClient()
	defer c.Close()

	key := schema.New("agents.chat", "ping", 1, 0, []byte(`{}`))
	req := &ether.Ether{Kind: "ping", SchemaVersion: 1, Payload: map[string]ether.Value{"n": ether.Int(1)}, Metadata: map[string]ether.Value{}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.CallAddr(ctx, addr, key, xcp.MsgDataMin, req); err != nil {
		t.Fatal(err)
	}
	first := c.sessions[addr]
	if _, err := c.CallAddr(ctx, addr, key, xcp.MsgDataMin, req); err != nil {
		t.Fatal(err)
	}
	if c.sessions[addr] != first {
		t.Fatal("expect the second CallAddr to reuse the same shared session")
	}
}

func TestClientCallViaDirectoryAndBalancer(t *testing.T) {
	addr := startEchoServer(t)
	dir := peerdir.NewMemoryDirectory()
	if err := dir.Register("workers", peerdir.Instance{Addr: addr}, 10); err != nil {
		t.Fatal(err)
	}

	reg := codec.NewRegistry()
	local := session.Capability{Codecs: reg.IDs(), MaxFrameBytes: 65536}
	cfg := session.DefaultConfig()
	cfg.RetryBaseMs = 20
	c := NewClient(dir, &loadbalance.RoundRobinBalancer{}, cfg, reg, local, nil)
	defer c.Close()

	req := &ether.Ether{Kind: "ping", SchemaVersion: 1, Payload: map[string]ether.Value{"n": ether.Int(3)}, Metadata: map[string]ether.Value{}}
	key := schema.New("agents.chat", "ping", 1, 0, []byte(`{}`))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Call(ctx, "workers", key, xcp.MsgDataMin, req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	n, _ := resp.Payload["n"].AsInt()
	if n != 3 {
		t.Fatalf("expect echoed n=3, got %d", n)
	}
}

func TestClientCallWithoutDirectoryFails(t *testing.T) {
	c := newTestClient()
	key := schema.New("agents.chat", "ping", 1, 0, []byte(`{}`))
	req := &ether.Ether{Kind: "ping", SchemaVersion: 1, Payload: map[string]ether.Value{}, Metadata: map[string]ether.Value{}}
	if _, err := c.Call(context.Background(), "workers", key, xcp.MsgDataMin, req); err == nil {
		t.Fatal("expect Call to fail when no directory is configured")
	}
}
