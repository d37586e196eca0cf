// Package events is an in-process publish/subscribe bus with typed topics.
package events

import (
	"sync"
)

// Topic names a stream of T values.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic. Topics are compared by name.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() string { return t.name }

type subscriber struct {
	id int
	fn func(any)
}

// Bus delivers published values synchronously to the topic's subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for topic t and returns a function that removes it.
func Subscribe[T any](b *Bus, t Topic[T], fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t.name] = append(b.subs[t.name], subscriber{
		id: id,
		fn: func(v any) { fn(v.(T)) },
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[t.name]
			for i, s := range list {
				if s.id == id {
					b.subs[t.name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish sends v to every subscriber of t. Subscribers run on the caller's
// goroutine and must not block.
func Publish[T any](b *Bus, t Topic[T], v T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs[t.name]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}
