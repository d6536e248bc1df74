package relay

import (
	"context"
	"sync"

	"github.com/edwingeng/deque"
)

// Control is a sentinel carried on queues next to ordinary payloads.
type Control uint8

const (
	// Payload marks an ordinary value. It is the zero Control.
	Payload Control = iota
	// Poison is emitted once by an actor when its loop ends: one upstream
	// peer is done.
	Poison
	// EOL ends a message pump. Inside a group it is enqueued once per peer
	// after all expected poisons arrived; on management queues (logs,
	// handlers) it marks the end of the stream.
	EOL
)

func (c Control) String() string {
	switch c {
	case Payload:
		return "payload"
	case Poison:
		return "poison"
	case EOL:
		return "eol"
	default:
		return "unknown"
	}
}

// Item is a single queue entry: either a payload or a control signal.
type Item[T any] struct {
	Value   T
	Control Control
}

// IsControl reports whether the item carries a control signal.
func (i Item[T]) IsControl() bool {
	return i.Control != Payload
}

// Queue is a FIFO, multi-producer multi-consumer transport.
//
// A bounded queue is backed by a buffered channel and blocks producers while
// it is full. An unbounded queue never blocks producers.
type Queue[T any] struct {
	ch chan Item[T]

	mu    sync.Mutex
	buf   deque.Deque
	ready chan struct{}
}

// NewQueue creates a queue holding at most maxsize items.
// A maxsize <= 0 creates an unbounded queue.
func NewQueue[T any](maxsize int) *Queue[T] {
	if maxsize > 0 {
		return &Queue[T]{ch: make(chan Item[T], maxsize)}
	}
	return &Queue[T]{
		buf:   deque.NewDeque(),
		ready: make(chan struct{}, 1),
	}
}

// Put enqueues a payload. It blocks while a bounded queue is full.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	return q.put(ctx, Item[T]{Value: v})
}

// PutControl enqueues a control signal.
func (q *Queue[T]) PutControl(ctx context.Context, c Control) error {
	return q.put(ctx, Item[T]{Control: c})
}

func (q *Queue[T]) put(ctx context.Context, item Item[T]) error {
	if q.ch == nil {
		q.mu.Lock()
		q.buf.PushBack(item)
		q.mu.Unlock()
		q.signal()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues the next item, blocking while the queue is empty.
func (q *Queue[T]) Get(ctx context.Context) (Item[T], error) {
	if q.ch != nil {
		select {
		case item := <-q.ch:
			return item, nil
		case <-ctx.Done():
			return Item[T]{}, ctx.Err()
		}
	}
	for {
		if item, ok := q.TryGet(); ok {
			return item, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return Item[T]{}, ctx.Err()
		}
	}
}

// TryGet dequeues the next item without blocking.
// It returns false if the queue is empty.
func (q *Queue[T]) TryGet() (Item[T], bool) {
	if q.ch != nil {
		select {
		case item := <-q.ch:
			return item, true
		default:
			return Item[T]{}, false
		}
	}
	q.mu.Lock()
	if q.buf.Empty() {
		q.mu.Unlock()
		return Item[T]{}, false
	}
	item := q.buf.PopFront().(Item[T])
	more := !q.buf.Empty()
	q.mu.Unlock()
	// pass the wake-up on to the next waiting consumer
	if more {
		q.signal()
	}
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	if q.ch != nil {
		return len(q.ch)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Cap returns the queue capacity, 0 for unbounded queues.
func (q *Queue[T]) Cap() int {
	if q.ch != nil {
		return cap(q.ch)
	}
	return 0
}
