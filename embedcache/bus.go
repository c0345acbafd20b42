package embedcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Reason explains why an invalidation was published.
type Reason string

const (
	ReasonManual       Reason = "manual"
	ReasonModelChanged Reason = "model_changed"
	ReasonReembedded   Reason = "reembedded"
)

// Event asks caches to drop Key, or everything when Key is empty.
type Event struct {
	Key    string
	Reason Reason
}

// Bus fans invalidation events out to subscribers. Publishing never blocks;
// a subscriber whose buffer is full misses the event and the drop is counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Int64
	closed  bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that unsubscribes and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of undelivered events.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Bind applies events from the bus to tier until ctx ends or the bus closes.
// The returned channel is closed when the binding stops.
func Bind(ctx context.Context, bus *Bus, tier Tier) <-chan struct{} {
	events, unsubscribe := bus.Subscribe(64)
	done := make(chan struct{})
	logger := slog.Default().With("component", "cache-invalidation")

	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Key == "" {
					logger.Debug("purging vector cache", "reason", e.Reason)
					tier.Purge(ctx)
					continue
				}
				tier.Invalidate(ctx, e.Key)
			}
		}
	}()
	return done
}
