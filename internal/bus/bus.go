package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jstrand/tradelink/internal/model"
)

var ErrClosed = errors.New("bus closed")

// Bus fans events out to per-topic subscribers through bounded queues.
type Bus struct {
	mu     sync.RWMutex
	subs   map[model.Topic][]*subscriber
	closed bool

	published int64
	dropped   int64
}

type subscriber struct {
	ch chan model.DomainEvent
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[model.Topic][]*subscriber)}
}

// Subscribe registers a subscriber for one topic with the given queue
// capacity. The returned cancel func removes the subscription and closes
// the channel.
func (b *Bus) Subscribe(topic model.Topic, buffer int) (<-chan model.DomainEvent, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan model.DomainEvent, buffer)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers the event to every subscriber of its topic without
// blocking; full subscriber queues drop the event.
func (b *Bus) Publish(ev model.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	atomic.AddInt64(&b.published, 1)
	for _, sub := range b.subs[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			atomic.AddInt64(&b.dropped, 1)
		}
	}
	return nil
}

// Close stops the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, list := range b.subs {
		for _, sub := range list {
			close(sub.ch)
		}
	}
	b.subs = make(map[model.Topic][]*subscriber)
}

// Stats returns publish/drop counters.
func (b *Bus) Stats() (published, dropped int64) {
	return atomic.LoadInt64(&b.published), atomic.LoadInt64(&b.dropped)
}
