// Package spscqueue implements the bounded single-producer/single-consumer
// ring of spec.md §4.8. Unlike the other containers in this module it does
// not use epoch-based reclamation at all — with exactly one writer and one
// reader, there's no concurrent free to race against a concurrent read, so
// the whole package only needs the plain memory-ordering discipline the
// core shares with everything else here.
//
// The ring is chained out of fixed-size segments the way
// container/ring.Ring chains fixed elements into a circle, except the
// chain here is linear (producer always extends forward, consumer always
// trails behind) rather than circular, and segments — not individual
// slots — are the unit that gets recycled. That recycling is grounded in
// two teacher idioms at once: sync/pool-1.15.go's small per-P victim
// cache (a bounded reuse pool beats allocating and immediately freeing),
// and runtime/mfixalloc.go's fixed-size free list (reuse is only sound
// because every block handed back is the same fixed shape).
// spscqueue 包实现有界单生产者单消费者环形队列。与本模块其余容器不同，它完全不使用
// 基于 epoch 的回收：只有一个写者一个读者，不存在并发释放与并发读取的竞争，因此只需要
// 和模块其它部分共享的那套内存序规则即可。
package spscqueue

import (
	"runtime"
	"sync/atomic"
)

// DefaultSegmentSize is spec.md §6's configured SPSC segment size: 64
// slots per block.
const DefaultSegmentSize = 64

// segmentCacheCap bounds the free list of drained segments the consumer
// hands back for the producer to reuse. spec.md §9 calls out that the
// upstream source's cache_stack short-circuits to an immediate free; the
// intended behavior — implemented here — is a small bounded cache of
// capacity 3.
const segmentCacheCap = 3

type segment[T any] struct {
	slots []T
	next  atomic.Pointer[segment[T]]
}

func newSegment[T any](n int) *segment[T] {
	return &segment[T]{slots: make([]T, n)}
}

func (s *segment[T]) reset() {
	var zero T
	for i := range s.slots {
		s.slots[i] = zero
	}
	s.next.Store(nil)
}

// segmentCache is itself a tiny bounded SPSC ring of *segment[T]: the
// consumer is the only writer (put, when it finishes draining a block)
// and the producer is the only reader (get, when it needs a fresh block
// to write into), so it needs none of the cached-index machinery the
// main data ring below uses — there's no hot path here to economize on.
type segmentCache[T any] struct {
	slots [segmentCacheCap]atomic.Pointer[segment[T]]
	head  atomic.Uint64
	tail  atomic.Uint64
}

func (c *segmentCache[T]) put(s *segment[T]) {
	t := c.tail.Load()
	h := c.head.Load()
	if t-h >= segmentCacheCap {
		return // cache full; let s be garbage-collected normally
	}
	s.reset()
	c.slots[t%segmentCacheCap].Store(s)
	c.tail.Store(t + 1)
}

func (c *segmentCache[T]) get() *segment[T] {
	h := c.head.Load()
	t := c.tail.Load()
	if h == t {
		return nil
	}
	s := c.slots[h%segmentCacheCap].Load()
	c.head.Store(h + 1)
	return s
}

// producerSide is spec.md §4.8's "cache line A": fields the producer
// writes and the consumer only occasionally reads (tail, with acquire),
// plus the consumer-alive flag, which the producer reads on every push
// but the consumer writes only once, on Close. Colocating a
// rarely-written flag with the producer's own hot atomic keeps the
// producer's reads from bouncing against the consumer's unrelated hot
// line (head, in consumerSide below).
type producerSide struct {
	tail          atomic.Uint64
	consumerAlive atomic.Bool
}

// consumerSide is cache line B, the dual of producerSide.
type consumerSide struct {
	head          atomic.Uint64
	producerAlive atomic.Bool
}

// pad gives a value trailing filler so it does not share a cache line with
// its neighbour. It repeats epoch/internal/cacheline.Pad, which Go's
// internal-package rule keeps out of reach of this sibling package.
type pad[T any] struct {
	Value T
	_     [64]byte
}

type core[T any] struct {
	segLen   int
	capacity uint64

	a pad[producerSide]
	b pad[consumerSide]

	cache segmentCache[T]
}

// Option configures a queue at construction time.
type Option func(*config)

type config struct {
	segLen int
}

// WithSegmentSize overrides spec.md §6's default SPSC segment size of 64.
func WithSegmentSize(n int) Option {
	return func(c *config) { c.segLen = n }
}

// New returns a connected Producer/Consumer pair backing a ring bounded
// at capacity outstanding items. capacity must be positive.
func New[T any](capacity int, opts ...Option) (*Producer[T], *Consumer[T]) {
	if capacity <= 0 {
		panic("spscqueue: capacity must be positive")
	}
	c := config{segLen: DefaultSegmentSize}
	for _, opt := range opts {
		opt(&c)
	}

	core := &core[T]{segLen: c.segLen, capacity: uint64(capacity)}
	core.a.Value.consumerAlive.Store(true)
	core.b.Value.producerAlive.Store(true)

	seg := newSegment[T](c.segLen)
	return &Producer[T]{core: core, seg: seg},
		&Consumer[T]{core: core, seg: seg}
}

// Producer is the sole writer of a spscqueue ring. It must not be used
// from more than one goroutine.
// Producer 是环形队列唯一的写者，不得在多个 goroutine 中并发使用。
type Producer[T any] struct {
	core       *core[T]
	seg        *segment[T]
	segBase    uint64
	localTail  uint64
	cachedHead uint64
}

// TryPush appends v to the ring. If the ring is full, or the consumer
// has been closed, TryPush reports false and returns v unchanged — per
// spec.md §7, this is a normal outcome, not an error.
func (p *Producer[T]) TryPush(v T) (T, bool) {
	if !p.core.a.Value.consumerAlive.Load() {
		return v, false
	}

	next := p.localTail + 1
	if next-p.cachedHead > p.core.capacity {
		p.cachedHead = p.core.b.Value.head.Load()
		if next-p.cachedHead > p.core.capacity {
			return v, false
		}
	}

	slotIdx := p.localTail - p.segBase
	if slotIdx == uint64(p.core.segLen) {
		next := p.core.cache.get()
		if next == nil {
			next = newSegment[T](p.core.segLen)
		}
		p.seg.next.Store(next)
		p.seg = next
		p.segBase = p.localTail
		slotIdx = 0
	}

	p.seg.slots[slotIdx] = v
	p.localTail = next
	p.core.a.Value.tail.Store(p.localTail)

	var zero T
	return zero, true
}

// ConsumerAlive reports whether the paired Consumer has not yet closed.
// The read is relaxed: a true result can go stale the instant after it's
// observed, per spec.md §7's dead-endpoint taxonomy.
func (p *Producer[T]) ConsumerAlive() bool {
	return p.core.a.Value.consumerAlive.Load()
}

// Close detaches this Producer. A subsequent ConsumerAlive-side observer
// (the Consumer's ProducerAlive) will see the partner gone.
func (p *Producer[T]) Close() {
	p.core.b.Value.producerAlive.Store(false)
}

// Reconnect reinstates a fresh Consumer for a producer whose original
// partner has closed, per spec.md §6's "endpoint liveness query and
// recreate-partner." Reconnection resumes from the producer's current
// position: any items already pushed but never drained by the dead
// consumer are discarded, since the dead consumer's private read
// position and segment-chain pointer are not recoverable once it's
// gone. Callers that need guaranteed delivery across a consumer restart
// must checkpoint at a layer above this queue.
func (p *Producer[T]) Reconnect() *Consumer[T] {
	p.core.a.Value.consumerAlive.Store(true)
	head := p.localTail
	p.core.b.Value.head.Store(head)
	return &Consumer[T]{core: p.core, seg: p.seg, segBase: p.segBase, localHead: head, cachedTail: head}
}

// Consumer is the sole reader of a spscqueue ring. It must not be used
// from more than one goroutine.
type Consumer[T any] struct {
	core       *core[T]
	seg        *segment[T]
	segBase    uint64
	localHead  uint64
	cachedTail uint64
}

// TryPop removes and returns the oldest unread item. It reports false if
// the ring is currently empty.
func (c *Consumer[T]) TryPop() (T, bool) {
	if c.localHead == c.cachedTail {
		c.cachedTail = c.core.a.Value.tail.Load()
		if c.localHead == c.cachedTail {
			var zero T
			return zero, false
		}
	}

	slotIdx := c.localHead - c.segBase
	if slotIdx == uint64(c.core.segLen) {
		var next *segment[T]
		for {
			next = c.seg.next.Load()
			if next != nil {
				break
			}
			runtime.Gosched()
		}
		drained := c.seg
		c.seg = next
		c.segBase = c.localHead
		slotIdx = 0
		c.core.cache.put(drained)
	}

	v := c.seg.slots[slotIdx]
	var zero T
	c.seg.slots[slotIdx] = zero
	c.localHead++
	// Relaxed is sufficient: nothing else synchronizes via head, since
	// only the consumer itself ever reads slot contents.
	c.core.b.Value.head.Store(c.localHead)
	return v, true
}

// ProducerAlive reports whether the paired Producer has not yet closed.
func (c *Consumer[T]) ProducerAlive() bool {
	return c.core.b.Value.producerAlive.Load()
}

// Close detaches this Consumer.
func (c *Consumer[T]) Close() {
	c.core.a.Value.consumerAlive.Store(false)
}

// Reconnect reinstates a fresh Producer for a consumer whose original
// partner has closed. See (*Producer[T]).Reconnect for the resume
// semantics this shares.
func (c *Consumer[T]) Reconnect() *Producer[T] {
	c.core.b.Value.producerAlive.Store(true)
	tail := c.localHead
	c.core.a.Value.tail.Store(tail)
	c.cachedTail = tail
	return &Producer[T]{core: c.core, seg: c.seg, segBase: c.segBase, localTail: tail, cachedHead: tail}
}
