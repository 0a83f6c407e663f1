// Package msqueue implements the Michael-Scott multi-producer,
// multi-consumer FIFO queue of spec.md §4.5: two atomic pointers, head and
// tail, with a sentinel node always present, generalized onto
// epoch.Atomic/Owned/Shared the way the teacher's runtime/chan.go
// generalizes a simpler single-slot rendezvous onto the scheduler's own
// park/ready primitives.
// msqueue 包实现 Michael-Scott 多生产者多消费者 FIFO 队列：head、tail 两个原子指针，
// 队列中始终存在一个哨兵节点。
package msqueue

import "github.com/schets/crossbeam/epoch"

type node[T any] struct {
	value T
	next  epoch.Atomic[node[T]]
}

// Destroy implements epoch.Destroyer, delegating to value's Destroy if it
// implements the interface.
func (n *node[T]) Destroy() {
	if d, ok := any(n.value).(epoch.Destroyer); ok {
		d.Destroy()
	}
}

// Queue is a lock-free, unbounded MPMC FIFO queue.
// Queue 是无锁、无界的多生产者多消费者 FIFO 队列。
type Queue[T any] struct {
	head epoch.Atomic[node[T]]
	tail epoch.Atomic[node[T]]
}

// New returns an empty Queue, already holding the sentinel node both head
// and tail point to per spec.md §4.5 ("a sentinel node is always
// present").
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	g := epoch.Pin()
	defer g.Release()

	sentinel := epoch.NewOwned(node[T]{})
	ptr := sentinel.Ptr()
	q.head.Store(sentinel, epoch.Relaxed)
	q.tail.Store(epoch.OwnedFromPtr(ptr), epoch.Relaxed)
	return q
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) {
	g := epoch.Pin()
	defer g.Release()

	owned := epoch.NewOwned(node[T]{value: v})
	for {
		tail := q.tail.Load(epoch.Acquire, g)
		next := tail.Ptr().next.Load(epoch.Acquire, g)
		if next.IsNull() {
			newShared, failed, ok := tail.Ptr().next.CompareAndSwapAndRef(next, owned, epoch.AcqRel, g)
			if ok {
				// Best-effort: advance tail ourselves. If we lose this
				// race, whoever observes our new node as a non-nil
				// tail.next will advance it for us (the "help advance
				// tail" branch below), so losing here is harmless.
				q.tail.CompareAndSwapShared(tail, newShared, epoch.Relaxed)
				return
			}
			owned = failed
			continue
		}
		// tail is stale: another producer linked a node but hasn't yet
		// advanced tail. Help it along and retry.
		q.tail.CompareAndSwapShared(tail, next, epoch.Relaxed)
	}
}

// TryPop removes and returns the item at the head of the queue. The
// second return value is false if the queue was empty.
func (q *Queue[T]) TryPop() (T, bool) {
	g := epoch.Pin()
	defer g.Release()

	for {
		head := q.head.Load(epoch.Acquire, g)
		tail := q.tail.Load(epoch.Acquire, g)
		next := head.Ptr().next.Load(epoch.Acquire, g)

		if head.Ptr() == tail.Ptr() {
			if next.IsNull() {
				var zero T
				return zero, false
			}
			// head caught up to a stale tail: help advance it, then
			// retry the whole operation against fresh state.
			q.tail.CompareAndSwapShared(tail, next, epoch.Relaxed)
			continue
		}

		v := next.Ptr().value
		if q.head.CompareAndSwapShared(head, next, epoch.AcqRel) {
			epoch.Unlinked(g, head)
			return v, true
		}
	}
}

// Pop removes and returns the item at the head of the queue, spinning
// until one is available. Per spec.md §5, the queue itself never blocks;
// this is a caller-level spin loop around TryPop.
func (q *Queue[T]) Pop() T {
	for {
		if v, ok := q.TryPop(); ok {
			return v
		}
	}
}
