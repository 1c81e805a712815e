// Package queue provides the ordered, closeable and awaitable event buffer
// that feeds an agent loop.
//
// A Queue has any number of producers and exactly one consumer. Producers
// never block: there is no capacity bound. The consumer suspends in Next
// only while the buffer is empty and the queue has not been stopped.
package queue

import (
	"context"
	"sync"
)

// Item is a queued payload together with its insertion sequence number.
type Item[T any] struct {
	Seq   uint64
	Value T
}

// Queue is a FIFO buffer with head insertion for priority items.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []Item[T]
	seq     uint64
	total   int
	stopped bool
	// notify holds at most one pending wake-up for the consumer.
	notify chan struct{}
}

// New returns an empty, running queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Push appends v at the tail. Pushing onto a stopped queue drops v.
func (q *Queue[T]) Push(v T) {
	q.insert(v, false)
}

// PushFirst inserts v at the head so it is observed before every item
// already queued. Pushing onto a stopped queue drops v.
func (q *Queue[T]) PushFirst(v T) {
	q.insert(v, true)
}

func (q *Queue[T]) insert(v T, first bool) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}

	q.seq++
	it := Item[T]{Seq: q.seq, Value: v}
	if first {
		q.items = append(q.items, Item[T]{})
		copy(q.items[1:], q.items)
		q.items[0] = it
	} else {
		q.items = append(q.items, it)
	}
	q.total++
	q.mu.Unlock()

	q.wake()
}

// Stop closes the queue. Items already buffered are still delivered; once
// they are drained Next reports ok=false. Stop is idempotent.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	already := q.stopped
	q.stopped = true
	q.mu.Unlock()

	if !already {
		q.wake()
	}
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next returns the next item in order. It returns ok=false once the queue is
// both empty and stopped, and ctx.Err() if ctx is done while waiting.
func (q *Queue[T]) Next(ctx context.Context) (T, bool, error) {
	it, ok, err := q.NextItem(ctx)
	return it.Value, ok, err
}

// NextItem is like Next but also returns the insertion sequence number.
func (q *Queue[T]) NextItem(ctx context.Context) (Item[T], bool, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			var zero Item[T]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true, nil
		}
		if q.stopped {
			q.mu.Unlock()
			// Leave a wake-up for any other waiter.
			q.wake()
			return Item[T]{}, false, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item[T]{}, false, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TotalLen returns the number of items ever accepted.
func (q *Queue[T]) TotalLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Stopped reports whether Stop has been called.
func (q *Queue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
