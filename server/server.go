// Package server implements the XCP server: kind-routed handler
// registration, a middleware chain, per-connection session handling, and
// graceful shutdown.
//
// Request processing pipeline, grounded on the teacher's Server
// (handleConn reads, handleRequest dispatches — except framing, codec
// selection, and multiplexing now live in session.Session, and reflection-
// based "Service.Method" dispatch is replaced by routing on Ether.Kind,
// since XCP messages are self-describing rather than RPC calls):
//
//	Accept conn → session.Open (handshake, then an internal recvLoop goroutine)
//	  → for each inbound message: middleware chain → kind handler → reply
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maida-ai/xcp/codec"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/frame"
	"github.com/maida-ai/xcp/middleware"
	"github.com/maida-ai/xcp/peerdir"
	"github.com/maida-ai/xcp/session"
)

// KindHandler handles every inbound Ether of a given Kind.
type KindHandler func(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error)

// Server accepts XCP connections, opens a session on each, and routes
// inbound messages to a KindHandler registered by Ether.Kind.
type Server struct {
	cfg   session.Config
	reg   *codec.Registry
	local session.Capability

	kindHandlers map[string]KindHandler
	middlewares  []middleware.Middleware
	handler      session.Handler

	listener net.Listener
	wg       sync.WaitGroup
	shutdown atomic.Bool

	sessMu   sync.Mutex
	sessions map[*session.Session]struct{}

	directory     peerdir.Directory
	namespace     string
	advertiseAddr string
}

// NewServer creates a server with an empty kind-handler map.
func NewServer(cfg session.Config, reg *codec.Registry, local session.Capability) *Server {
	return &Server{
		cfg:          cfg,
		reg:          reg,
		local:        local,
		kindHandlers: make(map[string]KindHandler),
		sessions:     make(map[*session.Session]struct{}),
	}
}

// Register associates kind with h. Registering the same kind twice
// overwrites the previous handler.
func (svr *Server) Register(kind string, h KindHandler) {
	svr.kindHandlers[kind] = h
}

// Use registers a middleware, applied in the order added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on address, optionally advertises advertiseAddr under
// namespace in dir, and accepts connections until Shutdown is called.
// Pass a nil dir to skip peer discovery registration.
func (svr *Server) Serve(network, address, advertiseAddr, namespace string, dir peerdir.Directory) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener

	svr.handler = session.Handler(middleware.Chain(svr.middlewares...)(svr.dispatch))

	svr.directory = dir
	svr.namespace = namespace
	svr.advertiseAddr = advertiseAddr
	if dir != nil {
		inst := peerdir.Instance{
			Addr:          advertiseAddr,
			Codecs:        svr.reg.IDs(),
			MaxFrameBytes: svr.local.MaxFrameBytes,
		}
		if err := dir.Register(namespace, inst, 10); err != nil {
			return fmt.Errorf("server: register with directory: %w", err)
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn opens a session on conn, tracking it for graceful shutdown.
// All reading/dispatch happens inside session.Session's own goroutines;
// this goroutine just waits for the session to close.
func (svr *Server) handleConn(conn net.Conn) {
	svr.wg.Add(1)
	defer svr.wg.Done()

	s, err := session.Open(conn, svr.cfg, svr.reg, svr.local, svr.handler, false)
	if err != nil {
		conn.Close()
		return
	}

	svr.sessMu.Lock()
	svr.sessions[s] = struct{}{}
	svr.sessMu.Unlock()
	defer func() {
		svr.sessMu.Lock()
		delete(svr.sessions, s)
		svr.sessMu.Unlock()
	}()

	<-s.Done()
}

// dispatch routes an inbound Ether to its kind handler.
func (svr *Server) dispatch(ctx context.Context, h frame.Header, e *ether.Ether) (*ether.Ether, error) {
	handler, ok := svr.kindHandlers[e.Kind]
	if !ok {
		return nil, fmt.Errorf("server: no handler registered for kind %q", e.Kind)
	}
	return handler(ctx, h, e)
}

// Shutdown deregisters from the directory, stops accepting connections,
// closes every open session, and waits up to timeout for every connection
// handler to return. Handler goroutines a session has already dispatched
// are not waited for.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.directory != nil {
		svr.directory.Deregister(svr.namespace, svr.advertiseAddr)
	}

	svr.shutdown.Store(true)
	svr.listener.Close()

	svr.sessMu.Lock()
	for s := range svr.sessions {
		s.Close()
	}
	svr.sessMu.Unlock()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for sessions to close")
	}
}
