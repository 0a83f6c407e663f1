// Package treiberstack implements the lock-free LIFO stack of spec.md
// §4.6, generalized from the teacher's runtime/lfstack.go the same way
// epoch/internal/lfstack is, but at the public, EBR-backed API level: push
// allocates a node and publishes it with a single CAS; pop reads the head,
// CASes it to head.next, and hands the old head to the guard for deferred
// destruction.
// treiberstack 包实现无锁 LIFO 栈：push 分配节点并通过一次 CAS 发布；pop 读取栈顶，
// 将其 CAS 为 head.next，并把旧的栈顶交给 guard 做延迟析构。
package treiberstack

import "github.com/schets/crossbeam/epoch"

// node's next pointer is set once, before the node is ever published by
// Push's CAS, and never mutated again — unlike the MS queue, a Treiber
// stack node's successor is fixed for the node's entire lifetime, so a
// plain pointer suffices here; there's no concurrent writer to race
// against.
type node[T any] struct {
	value T
	next  *node[T]
}

// Destroy implements epoch.Destroyer, delegating to value's own Destroy
// if it implements the interface. This is what lets spec.md §8 scenario
// (d) ("type carrying a destructor counter") observe exactly-once
// destruction through the container without the container needing to know
// anything about T beyond this delegation.
func (n *node[T]) Destroy() {
	if d, ok := any(n.value).(epoch.Destroyer); ok {
		d.Destroy()
	}
}

// Stack is a lock-free, multi-producer/multi-consumer LIFO stack.
// Stack 是无锁的多生产者/多消费者 LIFO 栈。
type Stack[T any] struct {
	head epoch.Atomic[node[T]]
}

// New returns an empty Stack.
func New[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push adds v to the top of the stack.
func (s *Stack[T]) Push(v T) {
	g := epoch.Pin()
	defer g.Release()

	owned := epoch.NewOwned(node[T]{value: v})
	for {
		head := s.head.Load(epoch.Acquire, g)
		owned.Ptr().next = head.Ptr()
		ok, failed := s.head.CompareAndSwap(head, owned, epoch.Relaxed)
		if ok {
			return
		}
		owned = failed
	}
}

// TryPop removes and returns the top of the stack. The second return
// value is false if the stack was empty.
func (s *Stack[T]) TryPop() (T, bool) {
	g := epoch.Pin()
	defer g.Release()

	for {
		head := s.head.Load(epoch.Acquire, g)
		if head.IsNull() {
			var zero T
			return zero, false
		}
		next := head.Ptr().next
		if s.head.CompareAndSwapShared(head, epoch.SharedFromPtr(next), epoch.Relaxed) {
			v := head.Ptr().value
			epoch.Unlinked(g, head)
			return v, true
		}
	}
}

// Pop removes and returns the top of the stack, spinning until an element
// is available. Per spec.md §5, this is a caller-level spin loop around
// TryPop, not a container-internal wait: the container itself never
// blocks.
func (s *Stack[T]) Pop() T {
	for {
		if v, ok := s.TryPop(); ok {
			return v
		}
	}
}
