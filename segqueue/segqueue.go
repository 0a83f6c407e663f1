// Package segqueue implements the segmented MPMC FIFO queue of spec.md
// §4.7: a chain of fixed-size "segments," each a slot array with a
// per-slot ready bit and atomic low/high claim indices, amortizing one
// allocation over many pushes instead of allocating a node per element.
//
// This is the direct generalization of the teacher's
// runtime/mgcwork.go gcWork/workbuf pool: a workbuf is exactly a
// fixed-size segment (_WorkbufSize bytes of uintptr slots plus an nobj
// high-water mark), and getempty/putfull/trygetfull is exactly a
// producer-consumer handoff of whole segments. Where the teacher's
// workbufs are claimed wholesale by one goroutine at a time (a P's gcWork
// owns wbuf1 fully while using it), this queue needs fine-grained
// concurrent claiming of individual slots within a shared segment, so
// high/low become per-slot fetch-add claim counters instead of a
// single-owner nobj field, and each slot gets its own ready bit so a
// consumer can tell a claimed-but-not-yet-written slot from a written one.
// segqueue 包实现分段式 MPMC FIFO 队列：由固定大小的“段”（slot 数组，每个 slot 带就绪位，
// 以及原子的 low/high 认领索引）串联而成，用一次分配摊销多次 push。这是把 teacher 的
// gcWork/workbuf 池从“一个 P 独占整段”泛化为“多个 goroutine 并发细粒度认领段内单个 slot”。
package segqueue

import (
	"runtime"
	"sync/atomic"

	"github.com/schets/crossbeam/epoch"
)

// DefaultSegmentSize is spec.md §6's configured segment size: 32 slots, a
// power of two.
const DefaultSegmentSize = 32

type slot[T any] struct {
	ready atomic.Bool
	value T
}

type segment[T any] struct {
	slots []slot[T]
	low   atomic.Int64
	high  atomic.Int64
	next  epoch.Atomic[segment[T]]
}

func newSegment[T any](size int) *segment[T] {
	return &segment[T]{slots: make([]slot[T], size)}
}

// Destroy implements epoch.Destroyer. By the time a segment is handed to
// epoch.Unlinked, every one of its slots has necessarily been claimed,
// written, and consumed (see TryPop), so it's always sound to delegate
// Destroy across the whole slice.
func (s *segment[T]) Destroy() {
	for i := range s.slots {
		if d, ok := any(s.slots[i].value).(epoch.Destroyer); ok {
			d.Destroy()
		}
	}
}

// Queue is a lock-free, unbounded MPMC FIFO queue of segments.
// Queue 是由段串联而成的无锁、无界 MPMC FIFO 队列。
type Queue[T any] struct {
	head       epoch.Atomic[segment[T]]
	tail       epoch.Atomic[segment[T]]
	segmentLen int
}

// Option configures a Queue at construction time.
type Option func(*config)

type config struct {
	segmentLen int
}

// WithSegmentSize overrides spec.md §6's default segment size of 32.
func WithSegmentSize(n int) Option {
	return func(c *config) { c.segmentLen = n }
}

// New returns an empty Queue.
func New[T any](opts ...Option) *Queue[T] {
	c := config{segmentLen: DefaultSegmentSize}
	for _, opt := range opts {
		opt(&c)
	}

	q := &Queue[T]{segmentLen: c.segmentLen}
	g := epoch.Pin()
	defer g.Release()

	seg := epoch.NewOwned(*newSegment[T](c.segmentLen))
	ptr := seg.Ptr()
	q.head.Store(seg, epoch.Relaxed)
	q.tail.Store(epoch.OwnedFromPtr(ptr), epoch.Relaxed)
	return q
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) {
	g := epoch.Pin()
	defer g.Release()

	for {
		tail := q.tail.Load(epoch.Acquire, g)
		seg := tail.Ptr()

		if seg.high.Load() >= int64(q.segmentLen) {
			// Another pusher already claimed the last slot and is in the
			// process of linking a new segment; spin until it's visible.
			runtime.Gosched()
			continue
		}

		i := seg.high.Add(1) - 1
		if i >= int64(q.segmentLen) {
			// Lost the race against another producer's fetch-add; retry
			// from the top rather than touch a slot beyond the segment.
			continue
		}

		seg.slots[i].value = v
		seg.slots[i].ready.Store(true)

		if i+1 == int64(q.segmentLen) {
			next := epoch.NewOwned(*newSegment[T](q.segmentLen))
			nextShared, failed, ok := seg.next.CompareAndSwapAndRef(epoch.NullShared[segment[T]](), next, epoch.AcqRel, g)
			if !ok {
				// Can't happen: i+1==segmentLen is only reached by the
				// single producer that claimed the final index, and
				// seg.next starts nil and is only ever set once.
				_ = failed
				panic("segqueue: concurrent tail-segment publication")
			}
			q.tail.CompareAndSwapShared(tail, nextShared, epoch.Relaxed)
		}
		return
	}
}

// TryPop removes and returns the item at the head of the queue. The
// second return value is false if the queue was empty.
func (q *Queue[T]) TryPop() (T, bool) {
	g := epoch.Pin()
	defer g.Release()

	for {
		head := q.head.Load(epoch.Acquire, g)
		seg := head.Ptr()

		for {
			l := seg.low.Load()
			h := seg.high.Load()
			limit := h
			if int64(q.segmentLen) < limit {
				limit = int64(q.segmentLen)
			}
			if l >= limit {
				break
			}
			if !seg.low.CompareAndSwap(l, l+1) {
				continue
			}

			for !seg.slots[l].ready.Load() {
				runtime.Gosched()
			}
			v := seg.slots[l].value

			if l+1 == int64(q.segmentLen) {
				var next epoch.Shared[segment[T]]
				for {
					next = seg.next.Load(epoch.Acquire, g)
					if !next.IsNull() {
						break
					}
					runtime.Gosched()
				}
				q.head.CompareAndSwapShared(head, next, epoch.Relaxed)
				epoch.Unlinked(g, head)
			}
			return v, true
		}

		if seg.next.Load(epoch.Acquire, g).IsNull() {
			var zero T
			return zero, false
		}
		// This segment is fully claimed but another goroutine hasn't
		// finished advancing head yet; retry against fresh state.
	}
}

// Pop removes and returns the item at the head of the queue, spinning
// until one is available.
func (q *Queue[T]) Pop() T {
	for {
		if v, ok := q.TryPop(); ok {
			return v
		}
	}
}
