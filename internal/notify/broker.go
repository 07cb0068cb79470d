// Package notify fans out "something changed" signals. Signals carry no
// payload; a subscriber that is slow to drain sees several changes coalesce
// into one.
package notify

import (
	"context"
	"sync"
)

// Broker is an in-process notifier.
type Broker struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a listener. The returned function unsubscribes and
// closes the channel; calling it more than once is safe.
func (b *Broker) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish signals every subscriber without blocking.
func (b *Broker) Publish(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Len reports the number of live subscribers.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
