package sync

import (
	"context"
	"sync"
)

// Latest broadcasts whole-value replacements to any number of subscribers.
//
// Each subscriber channel holds at most one pending value: publishing onto a
// full channel replaces the pending value, so a slow reader skips
// intermediate states and always observes the newest one.
type Latest[T any] struct {
	mu    sync.Mutex
	value T
	has   bool
	subs  map[uint64]chan T
	next  uint64
}

// NewLatest creates an empty broadcaster.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[uint64]chan T)}
}

// Publish stores v as the current value and offers it to every subscriber.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.has = true
	for _, ch := range l.subs {
		offer(ch, v)
	}
}

// Current returns the last published value and whether one exists.
func (l *Latest[T]) Current() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.has
}

// Subscribe returns a channel that first yields the current value (if any)
// and then every subsequent publish. The channel is closed when ctx ends.
func (l *Latest[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	l.mu.Lock()
	id := l.next
	l.next++
	if l.has {
		ch <- l.value
	}
	l.subs[id] = ch
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, id)
		close(ch)
		l.mu.Unlock()
	}()

	return ch
}

// offer must be called with the broadcaster lock held; the lock makes the
// drain-then-send sequence safe because only readers remove values.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
