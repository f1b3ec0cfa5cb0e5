package loadbalance

import (
	"fmt"
	"math/rand"

	"github.com/maida-ai/xcp/peerdir"
)

// WeightedRandomBalancer picks instances probabilistically in proportion
// to Instance.Weight: weight 10 gets roughly 2x the traffic of weight 5.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []peerdir.Instance) (*peerdir.Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}

	total := 0
	for _, v := range instances {
		total += v.Weight
	}
	if total <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("loadbalance: unexpected fallthrough in weighted selection")
}

func (b *WeightedRandomBalancer) Name() string { return "WeightedRandom" }
