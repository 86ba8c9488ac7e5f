package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// item is a single element of the queue's linked list
type item[T any] struct {
	value T
	next  atomic.Pointer[item[T]]
}

// Queue is an unbounded FIFO queue with lock-free producers.
//
// Producers append to a linked list with CAS operations. A single internal
// forwarder goroutine moves the items from the list into the channel returned
// by Recv, which can be consumed by any number of goroutines (e.g. a worker
// pool ranging over it). Push never blocks on consumers.
//
// Under concurrent Push calls the order between producers is decided by which
// CAS succeeds first. Items pushed by one producer keep their order.
type Queue[T any] struct {
	head    atomic.Pointer[item[T]]
	tail    atomic.Pointer[item[T]]
	out     chan T
	pending atomic.Int64
	closed  atomic.Bool
	done    sync.WaitGroup

	// wakes the forwarder when the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates an empty queue and starts its forwarder goroutine.
// The queue must be closed with Close to stop the forwarder.
func NewQueue[T any]() *Queue[T] {
	sentinel := &item[T]{}

	q := &Queue[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.done.Add(1)
	go q.forward()

	return q
}

// Push appends a value to the queue.
// It returns false if the queue was already closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &item[T]{value: value}
	var spins uint8

	// counted before the item becomes visible to the forwarder, so Len never
	// drops below zero
	q.pending.Add(1)

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// may fail if another producer already moved the tail, that is fine
				q.tail.CompareAndSwap(tail, n)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// another producer appended but did not move the tail yet, help it
			q.tail.CompareAndSwap(tail, next)
		}

		// back off under contention
		if spins < 6 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		} else {
			runtime.Gosched()
		}
	}
}

// forward moves items from the linked list into the output channel until the
// queue is closed and drained. It is the only goroutine touching head.
func (q *Queue[T]) forward() {
	defer q.done.Done()
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)

			q.out <- value
			q.pending.Add(-1)

			// release the reference for the gc
			var zero T
			next.value = zero
			continue
		}

		if q.closed.Load() {
			return
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the queued values are delivered on.
// The channel is closed after Close was called and every queued value was received.
func (q *Queue[T]) Recv() <-chan T {
	return q.out
}

// Close stops accepting new values. Values that are already queued are still
// delivered on the Recv channel before it is closed.
// A Push racing with Close may be dropped even if it reports true.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed.Store(true)
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Wait blocks until the forwarder goroutine has exited, i.e. until the queue
// was closed and every value was handed to a consumer.
func (q *Queue[T]) Wait() {
	q.done.Wait()
}

// IsClosed reports whether Close was called.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of values that were pushed but not yet received.
func (q *Queue[T]) Len() int {
	return int(q.pending.Load())
}
