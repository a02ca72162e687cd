package chat

import "sync"

// Bus fans messages out to every current subscriber. Publishing never
// blocks: with no subscribers the message is discarded, and a subscriber
// whose buffer is full loses its oldest undelivered message instead of
// stalling the publisher.
type Bus struct {
	mu       sync.Mutex
	capacity int
	subs     map[*Subscription]struct{}
}

// NewBus creates a bus whose subscribers each buffer up to capacity
// messages. Capacities below 1 are raised to 1.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Publish delivers msg to every subscriber in insertion order relative to
// other Publish calls. Publishers are serialized by the bus mutex, so each
// subscriber observes all messages in a single global order.
func (b *Bus) Publish(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: evict the oldest queued message so a lagging
			// reader skips ahead instead of blocking everyone else. Only
			// the subscriber reads from ch, so after the eviction there
			// is room for the new message.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber whose view starts now; messages
// published earlier are not replayed.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan string, b.capacity),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscription is one subscriber's bounded view of the bus. It belongs to
// a single consumer; Close detaches it and closes the receive channel.
type Subscription struct {
	bus *Bus
	ch  chan string
}

// C returns the channel messages arrive on. The channel is closed when the
// subscription is closed.
func (s *Subscription) C() <-chan string {
	return s.ch
}

// Close detaches the subscription from the bus. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}
