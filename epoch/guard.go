package epoch

// Guard is the RAII-style handle returned by Pin/Local.Pin, witnessing
// that its owning goroutine is inside a critical section. Per spec.md
// §4.2, for the lifetime of any Guard held by goroutine G, no pointer that
// was reachable through an Atomic at the moment of pin can be destroyed
// before G calls Release. Go has no destructors, so — unlike the Rust
// original's scope-exit drop — Release must be called explicitly; callers
// almost always do so with `defer g.Release()` immediately after Pin,
// mirroring how the teacher pairs lock()/unlock() and note-based
// park/ready calls with an immediate defer.
// Guard 是 Pin/Local.Pin 返回的 RAII 风格句柄，见证其所属 goroutine 正处于临界区内。
// Go 没有析构函数，调用方几乎总是在 Pin 后立刻 `defer g.Release()`。
type Guard struct {
	p     *Participant
	owner *Local // non-nil only when this guard came from the package-level Pin's pool
}

// Release exits one level of critical section, decrementing the
// participant's reentrant counter and, on the last level, opportunistically
// attempting a collection per spec.md §4.2-§4.3.
func (g Guard) Release() {
	g.p.unpin()
	if g.owner != nil {
		localPool.Put(g.owner)
	}
}

// Destroyer lets a node type register cleanup logic to run once it is
// provably unreachable to any pinned goroutine — the Go analogue of a
// destructor run by the deferred-free machinery. Implementing it is
// optional: a type that doesn't implement Destroyer is simply dropped,
// and Go's own garbage collector reclaims its memory once the bag holding
// the last reference to it is freed (see Unlinked).
// Destroyer 让节点类型注册一段清理逻辑，在该节点被证明对任何已 pin 的 goroutine 都不可达后
// 执行。实现它是可选的：未实现 Destroyer 的类型会被直接丢弃，一旦持有其最后引用的 Bag 被释放，
// Go 自身的垃圾回收器就会回收其内存。
type Destroyer interface {
	Destroy()
}

// Unlinked hands s to g's participant for deferred destruction: spec.md
// §4.4's "assert that this value is no longer reachable in any data
// structure and schedule it for deferred free." The caller promises no new
// reachable reference to it will be created — a broken promise is a data
// race the Go race detector can catch, exactly the scenario spec.md §8's
// ABA-resistance property guards against.
//
// Because Go already garbage-collects, Unlinked's job isn't to prevent
// use-after-free the way it must in a non-GC'd language (Go's GC would
// happily keep s.Ptr() valid even with no EBR at all); its job is
// destructor-timing: guaranteeing Destroy doesn't run, and a recycled
// node/slot isn't handed back out, until every goroutine that might still
// be dereferencing the old value has dropped its Guard. This is precisely
// what containers need for segment/node free-list recycling, not just for
// plain GC-backed allocation.
// Unlinked 将 s 交给 g 所属 participant 做延迟析构。由于 Go 本身就有垃圾回收，Unlinked
// 要保证的不是"释放后不再被访问"（没有 EBR，Go 的 GC 也不会让 s.Ptr() 失效），而是析构时机：
// 确保 Destroy 不会被调用、被回收复用的节点/槽位不会被提前再次派发，直到所有可能仍在解引用
// 旧值的 goroutine 都已经释放了各自的 Guard。
func Unlinked[T any](g Guard, s Shared[T]) {
	if s.ptr == nil {
		return
	}
	ptr := s.ptr
	g.p.new.push(deferred{run: func() {
		if d, ok := any(ptr).(Destroyer); ok {
			d.Destroy()
		}
	}})
}
