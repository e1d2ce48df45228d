// Package events fans out registry lifecycle events to subscribers.
//
// Publishing never blocks: a subscriber whose buffer is full misses the
// event and the drop is counted. Subscribers rebuild state from the status
// operation when they detect a gap.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/id"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber channel size
const DefaultBuffer = 64

// Bus is an in-process publish/subscribe hub for lifecycle events
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan types.Event
	nextID  uint64
	dropped atomic.Uint64
	closed  bool
	logger  *zap.Logger
}

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]chan types.Event),
		logger: logger,
	}
}

// Publish delivers an event to every subscriber without blocking.
// ID and At are filled in when empty.
func (b *Bus) Publish(evt types.Event) {
	if b == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = id.NewEventID().String()
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
			b.logger.Debug("Dropped event for slow subscriber",
				zap.String("type", string(evt.Type)),
				zap.String("module", evt.ModuleID))
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan types.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	subID := b.nextID
	b.subs[subID] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[subID]; ok {
				delete(b.subs, subID)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of live subscribers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel; later publishes are ignored
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subs {
		delete(b.subs, subID)
		close(ch)
	}
}
