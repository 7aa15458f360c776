// Package syncq provides a blocking FIFO queue coordinated by a
// caller-owned mutex.
//
// The queue exists to give the loader one uniform primitive with a
// "push wakes one waiting pop" contract, regardless of how the waiting
// is implemented underneath. Because consumers (the loader) guard more
// state than just the queue with a single lock, the queue does not own
// its mutex: every method must be called with the [sync.Locker] passed
// to [New] held. Wait releases the lock while blocked, like
// [sync.Cond.Wait].
package syncq

import "sync"

// Queue is a FIFO of T guarded by an external lock.
//
// All methods require the lock passed to [New] to be held by the
// caller. Queue itself performs no locking beyond the condition
// variable built on that lock.
type Queue[T comparable] struct {
	cond  *sync.Cond
	items []T
}

// New returns an empty queue whose blocking operations are coordinated
// through l. The same l must guard every call into the queue.
func New[T comparable](l sync.Locker) *Queue[T] {
	return &Queue[T]{cond: sync.NewCond(l)}
}

// Push appends v at the tail and wakes one goroutine blocked in Wait.
func (q *Queue[T]) Push(v T) {
	q.items = append(q.items, v)
	q.cond.Signal()
}

// PushFront inserts v at the head and wakes one goroutine blocked in
// Wait. Used for control markers that must preempt queued work.
func (q *Queue[T]) PushFront(v T) {
	q.items = append(q.items, v) // grow by one
	copy(q.items[1:], q.items)
	q.items[0] = v
	q.cond.Signal()
}

// Wait blocks until the queue is non-empty, releasing the shared lock
// while blocked and reacquiring it before returning.
func (q *Queue[T]) Wait() {
	for len(q.items) == 0 {
		q.cond.Wait()
	}
}

// Pop removes and returns the head. The queue must be non-empty.
func (q *Queue[T]) Pop() T {
	v := q.items[0]
	var zero T
	q.items[0] = zero // release the reference
	q.items = q.items[1:]
	return v
}

// Remove deletes the first element equal to v, preserving the order of
// the rest. It reports whether v was found.
func (q *Queue[T]) Remove(v T) bool {
	for i, it := range q.items {
		if it == v {
			q.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveFunc deletes every element for which match returns true,
// preserving the order of the rest. It returns the number removed.
func (q *Queue[T]) RemoveFunc(match func(T) bool) int {
	n := 0
	for i := 0; i < len(q.items); {
		if match(q.items[i]) {
			q.removeAt(i)
			n++
		} else {
			i++
		}
	}
	return n
}

// Contains reports whether v is queued.
func (q *Queue[T]) Contains(v T) bool {
	for _, it := range q.items {
		if it == v {
			return true
		}
	}
	return false
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return len(q.items) }

func (q *Queue[T]) removeAt(i int) {
	copy(q.items[i:], q.items[i+1:])
	var zero T
	q.items[len(q.items)-1] = zero
	q.items = q.items[:len(q.items)-1]
}
