package loadbalance

import (
	"fmt"
	"sync/atomic"

	"github.com/maida-ai/xcp/peerdir"
)

// RoundRobinBalancer distributes picks evenly across all instances in
// order, via a lock-free atomic counter.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(instances []peerdir.Instance) (*peerdir.Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }
