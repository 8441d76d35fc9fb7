// Package events is the in-process fan-out for pipeline and batch
// events. Publication never blocks: a subscriber that falls behind
// loses events rather than stalling the pipeline.
package events

import (
	"sync"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

const defaultBuffer = 64

type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan domain.Event)}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is closed on Unsubscribe or Close.
func (b *Bus) Subscribe(buffer int) (int, <-chan domain.Event) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan domain.Event, buffer)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber whose buffer has room.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

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
