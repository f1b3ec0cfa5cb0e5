// Package transport provides a borrow/return pool of XCP sessions to a
// single address (SessionPool).
//
// Note: client.Client uses a shared per-address session map (one session
// per address) instead of this pool — since a Session already
// multiplexes internally, most callers never need exclusive borrow. This
// pool is retained as an alternative for callers that want affinity to one
// session at a time (e.g. a consistent-hash-routed caller that wants to
// reuse the exact session it got last pick), grounded on the teacher's
// ConnPool.
//
// Pool design: a buffered channel as a natural FIFO queue — buffered
// channels are concurrency-safe, and blocking on empty is built in.
package transport

import (
	"fmt"
	"sync"

	"github.com/maida-ai/xcp/session"
)

// SessionPool manages a pool of reusable XCP sessions to a single address.
type SessionPool struct {
	mu       sync.Mutex
	sessions chan *PoolSession
	addr     string
	maxConns int
	curConns int
	factory  func() (*session.Session, error)
}

// PoolSession wraps a *session.Session with pool bookkeeping.
type PoolSession struct {
	*session.Session
	pool     *SessionPool
	unusable bool // set true when the caller hit an error using this session
}

// NewSessionPool creates a pool with the given max size. Sessions are
// created lazily — the pool starts empty and grows on demand.
func NewSessionPool(addr string, maxConns int, factory func() (*session.Session, error)) *SessionPool {
	return &SessionPool{
		sessions: make(chan *PoolSession, maxConns),
		addr:     addr,
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get retrieves a session from the pool: reuse an idle one, create a new
// one if under the cap, or block for one to be returned at capacity.
func (p *SessionPool) Get() (*PoolSession, error) {
	select {
	case s := <-p.sessions:
		if s.unusable {
			return p.createNew()
		}
		return s, nil
	default:
		if p.curConns < p.maxConns {
			return p.createNew()
		}
		s := <-p.sessions
		return s, nil
	}
}

// Put returns a session to the pool, or closes and discards it if it was
// marked unusable.
func (p *SessionPool) Put(s *PoolSession) {
	if s.unusable {
		s.Close()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.sessions <- s
}

// Close shuts down the pool and every session in it.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.sessions)
	for s := range p.sessions {
		s.Close()
		p.curConns--
	}
	return nil
}

func (p *SessionPool) createNew() (*PoolSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("transport: session pool exhausted for %s", p.addr)
	}

	sess, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.curConns++
	return &PoolSession{Session: sess, pool: p}, nil
}
