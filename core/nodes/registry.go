// Package nodes resolves the gateway node that serves the vehicle platform.
package nodes

import (
	"context"
	"sync"

	"github.com/kilianp07/vcmd/core/events"
	"github.com/kilianp07/vcmd/core/logger"
	"github.com/kilianp07/vcmd/core/model"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// Lister queries the gateway for the currently known nodes.
type Lister interface {
	ListNodes(ctx context.Context) ([]model.NodeDescriptor, error)
}

// Registry caches the id of the connected node for one platform. The cached
// id has no expiry: it stays valid until Invalidate or a forced refresh.
// Concurrent resolutions may race and issue duplicate lookups, which is
// harmless because resolution is idempotent.
type Registry struct {
	lister   Lister
	platform string
	log      logger.Logger
	bus      eventbus.EventBus

	mu     sync.Mutex
	cached string
}

// NewRegistry creates an empty registry for platform.
func NewRegistry(l Lister, platform string, log logger.Logger) *Registry {
	return &Registry{lister: l, platform: platform, log: log}
}

// SetEventBus publishes NodeEvents on bus.
func (r *Registry) SetEventBus(bus eventbus.EventBus) {
	r.mu.Lock()
	r.bus = bus
	r.mu.Unlock()
}

// Platform returns the platform tag nodes are matched against.
func (r *Registry) Platform() string { return r.platform }

// ResolveNodeID returns the cached id unless forceRefresh is set or nothing is
// cached, in which case the gateway is queried and the first connected node of
// the platform is cached. Lookup failures are logged and reported as "no
// node" without touching the cache.
func (r *Registry) ResolveNodeID(ctx context.Context, forceRefresh bool) (string, bool) {
	if !forceRefresh {
		if id, ok := r.Cached(); ok {
			nodeLookups.WithLabelValues("cached").Inc()
			return id, true
		}
	}

	list, err := r.lister.ListNodes(ctx)
	if err != nil {
		nodeLookups.WithLabelValues("error").Inc()
		r.log.Warnf("failed to list nodes: %v", err)
		return "", false
	}
	for _, n := range list {
		if n.Platform == r.platform && n.Connected && n.ID != "" {
			r.mu.Lock()
			r.cached = n.ID
			r.mu.Unlock()
			nodeLookups.WithLabelValues("found").Inc()
			r.log.Debugf("resolved %s node %s", r.platform, n.ID)
			r.publish(events.NodeEvent{Action: events.NodeResolved, NodeID: n.ID, Platform: r.platform})
			return n.ID, true
		}
	}
	nodeLookups.WithLabelValues("missing").Inc()
	r.log.Debugf("no connected %s node among %d listed", r.platform, len(list))
	r.publish(events.NodeEvent{Action: events.NodeMissing, Platform: r.platform})
	return "", false
}

// Cached returns the cached id without any I/O.
func (r *Registry) Cached() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached, r.cached != ""
}

// Invalidate clears the cache unconditionally.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	prev := r.cached
	r.cached = ""
	r.mu.Unlock()
	if prev != "" {
		r.log.Infof("invalidated cached node %s", prev)
	}
	r.publish(events.NodeEvent{Action: events.NodeInvalidated, NodeID: prev, Platform: r.platform})
}

func (r *Registry) publish(ev events.NodeEvent) {
	r.mu.Lock()
	bus := r.bus
	r.mu.Unlock()
	if bus != nil {
		bus.Publish(ev)
	}
}
