// Package broadcast fans out newly appended events to external
// subscribers (dashboards, CLIs) over Redis pub/sub. It is strictly
// downstream of the event log: a dropped or delayed publish never
// affects state or invariants (SPEC_FULL.md §3).
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/noesis-run/noesis/internal/eventlog"
)

const Channel = "noesis.events"

// Publisher wraps a redis client for best-effort event fan-out.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(addr string) *Publisher {
	return &Publisher{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Subscribable is satisfied by both *eventlog.Store and
// *statemanager.Manager, so Run can be handed either the raw store or
// the manager that owns it without this package importing statemanager.
type Subscribable interface {
	Subscribe() (<-chan eventlog.Event, func())
}

// Run subscribes to the store's append notifier and republishes every
// event to Redis until ctx is cancelled. Publish errors are swallowed —
// broadcast is observability, never a write path (spec.md §3.3 "the
// event log exclusively owns history").
func (p *Publisher) Run(ctx context.Context, store Subscribable) {
	events, cancel := store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = p.client.Publish(ctx, Channel, payload).Err()
		}
	}
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
