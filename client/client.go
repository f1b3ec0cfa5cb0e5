// Package client implements the XCP client facade: peer discovery, load
// balancing, and a shared per-address session pool sitting on top of
// session.Session.
//
// Call flow, grounded on the teacher's client.Call:
//
//	Call(ctx, namespace, ...)
//	  → Directory.Discover(namespace)  → get instance list from peerdir
//	  → Balancer.Pick(instances)        → select one address
//	  → getSession(addr)                → get a shared, multiplexed session
//	  → session.Request(...)            → send request, wait for reply
package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/codec"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/loadbalance"
	"github.com/maida-ai/xcp/peerdir"
	"github.com/maida-ai/xcp/schema"
	"github.com/maida-ai/xcp/session"
)

// Client manages the full call lifecycle: discovery → load balancing →
// session → request.
type Client struct {
	directory peerdir.Directory // nil disables discovery; use CallAddr directly
	balancer  loadbalance.Balancer
	cfg       session.Config
	reg       *codec.Registry
	local     session.Capability
	handler   session.Handler

	mu       sync.Mutex
	sessions map[string]*session.Session // shared, multiplexed — one per address
}

// NewClient creates a client. handler processes inbound indications pushed
// by the peer outside of request/response correlation; it may be nil.
func NewClient(dir peerdir.Directory, bal loadbalance.Balancer, cfg session.Config, reg *codec.Registry, local session.Capability, handler session.Handler) *Client {
	return &Client{
		directory: dir,
		balancer:  bal,
		cfg:       cfg,
		reg:       reg,
		local:     local,
		handler:   handler,
		sessions:  make(map[string]*session.Session),
	}
}

// getSession returns the shared session for addr, dialing and opening one
// on first use. Sessions are shared, not borrowed: a Session already
// multiplexes concurrent Request calls over one connection.
func (c *Client) getSession(addr string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[addr]; ok && s.State() == session.StateOpen {
		return s, nil
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	s, err := session.Open(conn, c.cfg, c.reg, c.local, c.handler, true)
	if err != nil {
		return nil, fmt.Errorf("client: open session to %s: %w", addr, err)
	}
	c.sessions[addr] = s
	return s, nil
}

// CallAddr opens (or reuses) a session to addr directly, bypassing
// discovery, and issues a request/response call.
func (c *Client) CallAddr(ctx context.Context, addr string, schemaKey schema.Key, msgType xcp.MsgType, e *ether.Ether) (*ether.Ether, error) {
	s, err := c.getSession(addr)
	if err != nil {
		return nil, err
	}
	return s.Request(ctx, schemaKey, msgType, e)
}

// Call discovers instances under namespace, picks one via the configured
// Balancer, and issues a request/response call against it.
func (c *Client) Call(ctx context.Context, namespace string, schemaKey schema.Key, msgType xcp.MsgType, e *ether.Ether) (*ether.Ether, error) {
	if c.directory == nil {
		return nil, fmt.Errorf("client: no directory configured, use CallAddr")
	}
	instances, err := c.directory.Discover(namespace)
	if err != nil {
		return nil, err
	}
	inst, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, err
	}
	return c.CallAddr(ctx, inst.Addr, schemaKey, msgType, e)
}

// Close closes every session this client opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, s := range c.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.sessions, addr)
	}
	return firstErr
}
