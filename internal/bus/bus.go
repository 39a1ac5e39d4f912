// Package bus implements a small generic publish/subscribe event bus used
// to fan internal commit/status notifications out to interested parties
// (monitors, subscribers, CLI tap views) without coupling the publisher to
// its observers.
package bus

import (
	"log"
	"sync"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// Bus fans events of type E out to subscribers keyed by a topic K, and to
// any number of passive tap channels that receive every event regardless
// of topic.
type Bus[K comparable, E any] struct {
	mu          sync.RWMutex
	subscribers map[K][]chan E
	taps        []chan E
}

// New creates an empty Bus.
func New[K comparable, E any]() *Bus[K, E] {
	return &Bus[K, E]{
		subscribers: make(map[K][]chan E),
	}
}

// Publish fans out evt to every subscriber of topic and to every tap.
// Non-blocking: a full subscriber or tap channel drops the event with a
// warning rather than stalling the publisher.
func (b *Bus[K, E]) Publish(topic K, evt E) {
	b.mu.RLock()
	subs := b.subscribers[topic]
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			log.Printf("[bus] WARNING: subscriber channel full for topic=%v — event dropped", topic)
		}
	}
	for _, tap := range taps {
		select {
		case tap <- evt:
		default:
			log.Printf("[bus] WARNING: tap channel full — event dropped topic=%v", topic)
		}
	}
}

// Subscribe returns a receive-only channel delivering events published
// under topic. Each call creates an independent channel.
func (b *Bus[K, E]) Subscribe(topic K) <-chan E {
	ch := make(chan E, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

// Tap returns a new read-only channel that receives every published event,
// regardless of topic. Used by passive observers (CLI tree view, trace log).
func (b *Bus[K, E]) Tap() <-chan E {
	ch := make(chan E, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
