package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdPrefix = "/fabric/services/"

// EtcdBackend implements Backend on etcd v3.
//
// Layout:
//
//	Key:   /fabric/services/{name}/{host:port}
//	Value: JSON-encoded Endpoint
//
// Registration uses TTL-based leases so that crashed instances expire
// automatically instead of lingering as ghost endpoints.
type EtcdBackend struct {
	client *clientv3.Client
}

// NewEtcdBackend connects to the given etcd endpoints.
func NewEtcdBackend(endpoints []string, dialTimeout time.Duration) (*EtcdBackend, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect: %w", err)
	}
	return &EtcdBackend{client: c}, nil
}

// LookupService returns all registered endpoints for a service.
func (b *EtcdBackend) LookupService(ctx context.Context, name string) ([]Endpoint, error) {
	resp, err := b.client.Get(ctx, etcdPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			// Skip malformed entries rather than failing the lookup.
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Register publishes an endpoint under a TTL lease and keeps the lease
// alive until Deregister or process exit.
func (b *EtcdBackend) Register(ctx context.Context, name string, ep Endpoint, ttlSeconds int64) error {
	lease, err := b.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return fmt.Errorf("etcd lease grant: %w", err)
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	_, err = b.client.Put(ctx, etcdPrefix+name+"/"+ep.Addr(), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("etcd put: %w", err)
	}

	ch, err := b.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("etcd keepalive: %w", err)
	}
	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an endpoint, typically during graceful shutdown.
func (b *EtcdBackend) Deregister(ctx context.Context, name string, ep Endpoint) error {
	_, err := b.client.Delete(ctx, etcdPrefix+name+"/"+ep.Addr())
	return err
}

// Watch emits the full endpoint list whenever the service's prefix
// changes (registrations, deregistrations, lease expirations). The
// channel closes when ctx is done.
func (b *EtcdBackend) Watch(ctx context.Context, name string) <-chan []Endpoint {
	out := make(chan []Endpoint, 1)

	go func() {
		defer close(out)
		watchChan := b.client.Watch(ctx, etcdPrefix+name+"/", clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list; simpler than folding watch events.
			endpoints, err := b.LookupService(ctx, name)
			if err != nil {
				continue
			}
			select {
			case out <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Close releases the etcd connection.
func (b *EtcdBackend) Close() error {
	return b.client.Close()
}
