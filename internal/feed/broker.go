// Package feed provides an in-process publish/subscribe broker. It carries
// participant change events to the leaderboard refresher and refreshed
// snapshots to streaming clients.
//
// Delivery is best effort: a subscriber whose buffer is full misses the event.
// Consumers treat every event as "something changed" and converge on the next
// one or on the periodic refresh.
package feed

import "sync"

// Broker fans values of type T out to subscribers.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan T
	next   uint64
	buffer int
	closed bool
}

// NewBroker returns a broker whose subscriber channels hold buffer values.
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker[T]{subs: make(map[uint64]chan T), buffer: buffer}
}

// Publish delivers v to every subscriber with buffer room and returns how
// many received it.
func (b *Broker[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- v:
			n++
		default:
		}
	}
	return n
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

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

// Subscribers returns the number of active subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are dropped and
// later subscribers receive a closed channel.
func (b *Broker[T]) Close() {
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
