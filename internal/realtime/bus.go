package realtime

import (
	"context"
	"errors"
	"sync"
)

var errNoCallback = errors.New("onMsg callback required")

// Bus distributes events between server instances.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// StartForwarder delivers every published event to onMsg until ctx is done.
	StartForwarder(ctx context.Context, onMsg func(Event)) error
	Close() error
}

// MemoryBus delivers events within a single process.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]func(Event))}
}

// Publish hands ev to every active forwarder.
func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// StartForwarder registers onMsg until ctx is cancelled.
func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(Event)) error {
	if onMsg == nil {
		return errNoCallback
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

// Close drops all forwarders.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[int]func(Event))
	b.mu.Unlock()
	return nil
}
