// Package cache provides the Redis-backed fast-path deduplication of
// gateway webhook events. It is advisory only: the authoritative dedup is
// the transactional payment_events row in the order store, so a Redis
// outage degrades to slightly more work per redelivery, never to a lost
// or double-applied event.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultTTL keeps keys around long past the gateway's redelivery window.
const defaultTTL = 24 * time.Hour

// EventDeduper remembers which gateway event ids were already processed.
type EventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewEventDeduper(addr, serviceName string) *EventDeduper {
	return &EventDeduper{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: serviceName + ":event:",
		ttl:    defaultTTL,
	}
}

// Seen reports whether the event id was marked before.
func (d *EventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("cache: check event %q: %w", eventID, err)
	}
	return n > 0, nil
}

// Mark records the event id. Called only after the event's effect is
// durably committed; marking earlier would let a crash turn a gateway
// retry into a dropped event.
func (d *EventDeduper) Mark(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, d.prefix+eventID, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("cache: mark event %q: %w", eventID, err)
	}
	return nil
}

// Close releases the underlying client.
func (d *EventDeduper) Close() error {
	return d.client.Close()
}
