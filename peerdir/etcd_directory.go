// Package peerdir: etcd-backed Directory implementation.
//
// etcd gives a distributed, strongly-consistent place to answer "who else
// speaks XCP and what do they support":
//
//	Key:   /xcp/peers/{namespace}/{addr}
//	Value: JSON-encoded Instance
//
// Registration uses a TTL lease exactly as the teacher's EtcdRegistry does:
// if the owning process stops renewing the lease, etcd expires the key on
// its own, so a crashed peer is never advertised as reachable.
package peerdir

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdDirectory implements Directory on top of an etcd v3 client.
type EtcdDirectory struct {
	client *clientv3.Client
}

// NewEtcdDirectory connects to the given etcd endpoints.
func NewEtcdDirectory(endpoints []string) (*EtcdDirectory, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdDirectory{client: c}, nil
}

func key(namespace, addr string) string {
	return "/xcp/peers/" + namespace + "/" + addr
}

func prefix(namespace string) string {
	return "/xcp/peers/" + namespace + "/"
}

// Register stores inst under namespace with a TTL lease and starts
// background lease renewal. leaseID is kept local (not on the struct) so
// concurrent Register calls for different namespaces never race on shared
// state.
func (d *EtcdDirectory) Register(namespace string, inst Instance, ttlSeconds int64) error {
	inst = assignID(inst)
	ctx := context.TODO()

	lease, err := d.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	if _, err := d.client.Put(ctx, key(namespace, inst.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := d.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes addr from namespace immediately, ahead of lease expiry.
func (d *EtcdDirectory) Deregister(namespace, addr string) error {
	_, err := d.client.Delete(context.TODO(), key(namespace, addr))
	return err
}

// Discover lists every instance currently registered under namespace.
func (d *EtcdDirectory) Discover(namespace string) ([]Instance, error) {
	resp, err := d.client.Get(context.TODO(), prefix(namespace), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch streams updated instance lists for namespace, re-querying Discover
// on every change notification (simpler than reconciling individual watch
// events, at the cost of an extra round trip per change).
func (d *EtcdDirectory) Watch(namespace string) <-chan []Instance {
	ch := make(chan []Instance, 1)
	go func() {
		watchChan := d.client.Watch(context.TODO(), prefix(namespace), clientv3.WithPrefix())
		for range watchChan {
			instances, err := d.Discover(namespace)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()
	return ch
}
