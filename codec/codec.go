// Package codec provides the pluggable Ether (de)serialization layer and
// the process-wide codec registry (§4.2, §4.3).
//
// Grounded on the teacher's codec package (Strategy pattern: an interface
// with Encode/Decode/Type, a factory for dispatch by ID), generalized from
// two fixed RPCMessage codecs to an open registry of Ether codecs keyed by
// a wire-level numeric ID, with idempotent registration and a freeze point.
package codec

import (
	"fmt"
	"sync"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// Codec encodes/decodes an Ether envelope to/from bytes under a specific
// wire format, identified by a numeric ID (§4.2).
type Codec interface {
	Encode(e *ether.Ether) ([]byte, error)
	Decode(data []byte) (*ether.Ether, error)
	Name() string
	ID() xcp.CodecID
	IsBinary() bool
}

// Registry is a process-wide table mapping codec ID/name to implementation
// (§4.3). Registration is idempotent by ID: re-registering the same ID with
// a different implementation is an error. The registry is initialized with
// built-ins and may be extended until Freeze is called — the session engine
// calls Freeze on the first session open.
type Registry struct {
	mu     sync.RWMutex
	byID   map[xcp.CodecID]Codec
	byName map[string]Codec
	frozen bool
}

// NewRegistry returns a Registry pre-populated with the two codecs every
// implementation MUST support: JSON and BINARY_STRUCT (§4.2).
func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[xcp.CodecID]Codec),
		byName: make(map[string]Codec),
	}
	_ = r.Register(NewJSONCodec())
	_ = r.Register(NewBinaryStructCodec())
	return r
}

// Register adds c to the registry. Re-registering the same ID with an
// implementation of a different underlying type is an error; re-registering
// with an equivalent one (same concrete type) is accepted as idempotent.
func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("codec: registry is frozen, cannot register %q (id 0x%04x)", c.Name(), c.ID())
	}
	if existing, ok := r.byID[c.ID()]; ok {
		if fmt.Sprintf("%T", existing) != fmt.Sprintf("%T", c) {
			return fmt.Errorf("codec: id 0x%04x already registered to a different implementation (%T vs %T)", c.ID(), existing, c)
		}
		return nil // idempotent re-registration
	}
	r.byID[c.ID()] = c
	r.byName[c.Name()] = c
	return nil
}

// Freeze prevents any further registration. Called once, by the session
// engine, at first session open (§4.3, §5).
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the codec registered under id, if any.
func (r *Registry) Lookup(id xcp.CodecID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// LookupByName returns the codec registered under name, if any.
func (r *Registry) LookupByName(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// IDs returns the set of registered codec IDs, used when advertising a
// Capability record.
func (r *Registry) IDs() []xcp.CodecID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]xcp.CodecID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// Default is the process-wide registry built-ins register into at package
// init. Applications extend it with optional codecs (tensor, mixed-latent,
// Arrow IPC, DLPack) before opening their first session.
var Default = NewRegistry()
