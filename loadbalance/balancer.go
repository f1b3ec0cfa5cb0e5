// Package loadbalance provides strategies for picking one peer out of a
// peerdir-discovered instance list.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless peers, equal capacity
//   - WeightedRandom:  heterogeneous peers (different CPU/memory)
//   - ConsistentHash:  session-affine routing (same correlation key always
//     lands on the same peer, useful when a peer holds per-session state
//     such as an open assembly table)
package loadbalance

import "github.com/maida-ai/xcp/peerdir"

// Balancer selects one instance from a discovered list. Called on every
// dial — implementations must be goroutine-safe.
type Balancer interface {
	Pick(instances []peerdir.Instance) (*peerdir.Instance, error)
	Name() string
}
