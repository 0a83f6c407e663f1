package epoch

import "log"

// Ordering names the memory ordering requested for an Atomic operation.
// Go's sync/atomic operations (and the generic atomic.Pointer[T] wrapper
// they're built on) are already sequentially consistent, the strongest
// ordering there is, so no Ordering value here changes what instructions
// are emitted. What it does do is preserve spec.md §4.4's ordering rule as
// a checked API contract: passing a nonsensical ordering for the operation
// is a usage error and panics, the same "usage errors... react with an
// assertion failure" policy spec.md §7 lays out, and the same role
// runtime.throw plays in the teacher for invariant violations that can
// only be programmer bugs.
// Ordering 指定一次 Atomic 操作请求的内存序。Go 的 sync/atomic 本身已经是最强的顺序一致性，
// 这里的取值不会改变生成的指令；它的作用是把 spec 中的内存序规则当作一份受检查的 API 约定：
// 对某个操作传入不合理的内存序属于使用错误，会直接 panic。
type Ordering int

const (
	Relaxed Ordering = iota
	Acquire
	Release
	AcqRel
	SeqCst
)

func checkLoadOrdering(o Ordering) {
	if o == Release || o == AcqRel {
		log.Panicf("epoch: Load must not be called with Release or AcqRel ordering")
	}
}

func checkStoreOrdering(o Ordering) {
	if o == Acquire || o == AcqRel {
		log.Panicf("epoch: Store must not be called with Acquire or AcqRel ordering")
	}
}
