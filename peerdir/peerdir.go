// Package peerdir is a capability-advertising peer directory for XCP
// endpoints: it answers "which peers can speak to me, and what do they
// support" the way a conventional service registry answers "which
// addresses serve this RPC service" — generalized from a service name to a
// namespace of schema-bearing peers, since XCP endpoints are identified by
// the schemas/codecs they advertise rather than by a fixed method set.
//
// Grounded on the teacher's registry package: same TTL-lease-backed
// register/deregister/discover/watch shape, retargeted from
// registry.ServiceInstance to peerdir.Instance.
package peerdir

import (
	"github.com/google/uuid"

	"github.com/maida-ai/xcp"
)

// Instance is one XCP endpoint advertised under a namespace.
type Instance struct {
	ID            string // assigned by Register if empty; stable across re-registration if set
	Addr          string // dialable address, e.g. "127.0.0.1:9443"
	Weight        int    // for weighted load balancing
	Version       string // implementation/schema-set version tag
	Codecs        []xcp.CodecID
	MaxFrameBytes uint32
}

// assignID fills in inst.ID with a fresh UUID if the caller left it empty,
// so every directory implementation hands out a stable identity for an
// instance without requiring callers to generate one themselves.
func assignID(inst Instance) Instance {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	return inst
}

// Directory is the interface for peer registration and discovery.
// Implementations include EtcdDirectory (production) and any in-memory
// fake used in tests.
type Directory interface {
	// Register adds inst under namespace with a TTL lease in seconds; the
	// entry disappears automatically if the registering process stops
	// renewing it (crash, network partition).
	Register(namespace string, inst Instance, ttlSeconds int64) error

	// Deregister removes addr from namespace. Called during graceful
	// shutdown, before the listener stops accepting.
	Deregister(namespace, addr string) error

	// Discover returns all instances currently registered under namespace.
	Discover(namespace string) ([]Instance, error)

	// Watch emits an updated instance list for namespace whenever it
	// changes.
	Watch(namespace string) <-chan []Instance
}
