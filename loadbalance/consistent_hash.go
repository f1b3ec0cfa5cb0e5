package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/maida-ai/xcp/peerdir"
)

// ConsistentHashBalancer maps correlation keys (e.g. a session's trace_id
// or a kind namespace) onto a hash ring of instances, so the same key keeps
// landing on the same peer across calls. Each instance gets 100 virtual
// nodes so three or four real instances don't cluster unevenly on the ring.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]*peerdir.Instance
}

// NewConsistentHashBalancer creates an empty ring.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]*peerdir.Instance),
	}
}

// Add places inst onto the ring.
func (b *ConsistentHashBalancer) Add(inst *peerdir.Instance) {
	for i := 0; i < b.replicas; i++ {
		k := fmt.Sprintf("%s#%d", inst.Addr, i)
		h := crc32.ChecksumIEEE([]byte(k))
		b.ring = append(b.ring, h)
		b.nodes[h] = inst
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Pick finds the instance owning key's position on the ring: the first node
// whose hash is >= the key's hash, wrapping around to the first node if the
// key's hash exceeds every node's.
func (b *ConsistentHashBalancer) Pick(key string) (*peerdir.Instance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("loadbalance: ring is empty")
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string { return "ConsistentHash" }
