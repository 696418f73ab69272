package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"billing/internal/cache"

	"github.com/samber/lo"
)

var ErrUnknownResource = errors.New("unknown cache resource")

// Publisher delivers a serialized event to connected clients.
type Publisher interface {
	Publish(message []byte)
}

// Event is the websocket payload telling browsers which keys went stale.
type Event struct {
	Type      string   `json:"type"`
	Resources []string `json:"resources"`
	Keys      []string `json:"keys"`
}

// Bus is created once at startup and handed to every service that mutates
// cached data.
type Bus struct {
	store     cache.Store
	publisher Publisher
	registry  Registry
}

// NewBus wires the cache store and the optional publisher. A nil registry
// means DefaultRegistry.
func NewBus(store cache.Store, publisher Publisher, registry Registry) *Bus {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Bus{store: store, publisher: publisher, registry: registry}
}

// Keys resolves a resource to its keys without touching the cache.
func (b *Bus) Keys(resource string, ids ...string) ([]string, error) {
	build, ok := b.registry[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	return build(ids), nil
}

// Invalidate deletes the cache entries behind resource (optionally narrowed
// to ids) and broadcasts the stale keys.
func (b *Bus) Invalidate(ctx context.Context, resource string, ids ...string) error {
	return b.InvalidateMany(ctx, map[string][]string{resource: ids})
}

// InvalidateMany resolves every resource first so an unknown name aborts
// before anything is deleted.
func (b *Bus) InvalidateMany(ctx context.Context, targets map[string][]string) error {
	resources := lo.Keys(targets)
	sort.Strings(resources)

	var keys []string
	for _, r := range resources {
		resolved, err := b.Keys(r, targets[r]...)
		if err != nil {
			return err
		}
		keys = append(keys, resolved...)
	}
	keys = lo.Uniq(keys)

	patterns, exact := lo.FilterReject(keys, func(k string, _ int) bool { return isPattern(k) })
	for _, p := range patterns {
		if _, err := b.store.DeletePattern(ctx, p); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", p, err)
		}
	}
	if err := b.store.Delete(ctx, exact...); err != nil {
		return fmt.Errorf("failed to invalidate keys: %w", err)
	}

	b.publish(Event{Type: "invalidate", Resources: resources, Keys: keys})
	return nil
}

func (b *Bus) publish(ev Event) {
	if b.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("invalidation: failed to encode event: %v", err)
		return
	}
	b.publisher.Publish(payload)
}
