// Package epoch implements epoch-based memory reclamation: a global epoch
// counter, per-goroutine participant registration, critical-section
// pinning, and the atomic-pointer abstraction (Atomic, Owned, Shared) that
// the containers in sibling packages (msqueue, treiberstack, segqueue)
// build on.
// epoch 包实现基于分代（epoch）的内存回收：全局 epoch 计数、按 goroutine 注册的 participant、
// 临界区固定（pin），以及供同模块其他容器包使用的原子指针抽象（Atomic、Owned、Shared）。
package epoch

import (
	"sync"
	"sync/atomic"
)

// global is the process-wide EBR singleton: the epoch counter, the three
// garbage generations, and the participant list. spec.md's Design Notes
// suggest either a CAS-initialized lazy singleton or, where the language
// allows constant construction, a statically allocated aggregate — Go's
// package-level vars are zero-initialized before any other code in the
// program runs, which is exactly that static-construction option, so no
// init-once machinery is needed here at all.
// global 是进程级 EBR 单例：epoch 计数、三代垃圾、participant 链表。Go 的包级变量在任何
// 代码运行前就已完成零值初始化，天然满足 spec 中“静态构造的聚合体”这一选项，因此无需任何
// 一次性初始化逻辑。
type global struct {
	epoch atomic.Uint64
	bags  [3]globalBag
	list  participantList
}

var globalState global

// localPool hands out *Local handles to the package-level Pin for callers
// that don't need their own explicit registration. This is the same
// generational-cache idiom the teacher's sync/pool-1.15.go uses for
// per-P caches: a goroutine that calls Pin borrows whichever Local is
// currently idle, uses it exclusively for the lifetime of the returned
// Guard, and returns it to the pool on Release — never concurrently
// shared, just not guaranteed to be the *same* Local across calls (Go has
// no public goroutine-local storage, so true per-thread affinity as in
// spec.md's TLS-based design isn't reachable; see DESIGN.md).
// localPool 为无需自行注册的调用方的包级 Pin 提供 *Local。这与 teacher 的 sync/pool-1.15.go
// 中 per-P 缓存的思路一致：调用 Pin 的 goroutine 借用一个当前空闲的 Local，在返回的 Guard
// 存活期间独占使用，Release 时归还；不会被并发共享，只是不保证跨调用复用同一个 Local。
var localPool = sync.Pool{
	New: func() any {
		return Register()
	},
}

// Pin enters a critical section using a pooled Local and returns its
// guard. Use this for one-shot operations (a single container push/pop);
// use Register to obtain a Local that supports true nested-pin reentrancy
// across multiple calls from the same goroutine.
// Pin 使用一个池化的 Local 进入临界区并返回其 guard，适用于一次性操作（单次 push/pop）；
// 如果需要同一 goroutine 跨多次调用真正可重入地嵌套 pin，请使用 Register 获取专属 Local。
func Pin() Guard {
	l := localPool.Get().(*Local)
	g := l.p.pin()
	g.owner = l
	return g
}

// Local is an explicitly registered participant, the Go analogue of
// spec.md's "thread enrols... pointer is stored in thread-local storage."
// Go has no public per-goroutine storage, so registration here is
// explicit: a goroutine that wants reentrant, identity-stable pinning
// calls Register once and keeps the returned *Local for its lifetime,
// calling Unregister when it is done.
// Local 是显式注册的 participant，对应 spec 中“线程注册、指针存于线程局部存储”的语义。
// Go 没有公开的按 goroutine 存储机制，因此这里改为显式注册：需要可重入、身份稳定的 pin
// 的 goroutine 调用一次 Register 并持有返回的 *Local，用完后调用 Unregister。
type Local struct {
	p *Participant
}

// Register enrolls a new participant: spec.md §4.1's "allocate a
// participant record and CAS-prepend it to the head of the global
// participant list." The new node cannot be logically removed until
// Unregister flips its active flag, so it is safe to append before the
// calling goroutine itself ever pins — matching the "fake guard" enrolment
// trick in spec.md (no participant is needed to perform the append CAS
// itself, only to later be pinned through).
// Register 注册一个新的 participant：分配记录并将其头插到全局 participant 链表。在
// Unregister 翻转其 active 标志之前，该节点不可能被逻辑删除，因此在调用方自己 pin 之前
// 就把它追加进链表是安全的。
func Register() *Local {
	p := newParticipant()
	globalState.list.append(p)
	return &Local{p: p}
}

// Pin enters a (possibly nested) critical section on l's own participant.
// Nested calls reuse the same participant and are cheap: they only bump a
// counter, matching spec.md §4.2's reentrancy contract.
func (l *Local) Pin() Guard {
	return l.p.pin()
}

// Unregister marks the participant inactive. Per spec.md §4.1 the record
// itself is reclaimed lazily by a later traversal of the participant list,
// not reclaimed here. Unlike the opportunistic migrateThreshold check in
// Participant.unpin, this migration is unconditional: once active is false
// nothing will ever pin through this participant again, so any local
// garbage left behind — however little — would otherwise be stranded
// forever, since tryCollect only ever inspects active participants'
// epochs, never an inactive one's leftover bags.
// Unregister 将 participant 标记为失活；记录本身由之后的链表遍历惰性回收，这里不会立即
// 释放。与 unpin 中机会性的 migrateThreshold 检查不同，这里的迁移是无条件的：一旦 active
// 变为 false，就再也不会有人通过这个 participant 进入临界区，哪怕只剩很少的本地垃圾，
// 如果不在此时迁移也会永远搁置——因为 tryCollect 只检查活跃 participant 的 epoch，
// 从不查看失活 participant 遗留的垃圾袋。
func (l *Local) Unregister() {
	l.p.migrate()
	l.p.active.Store(false)
}

// tryCollect implements spec.md §4.3's collection protocol. It may be
// called by any pinned goroutine and never blocks: every exit is either a
// successful bump of the global epoch (with the now-unreachable
// generation freed) or an early, harmless "return false."
// tryCollect 实现 spec §4.3 的回收协议，可由任意已 pin 的 goroutine 调用且绝不阻塞：
// 要么成功推进全局 epoch 并释放已知不可达的一代，要么提前放弃，两种结果都不会阻塞调用方。
func tryCollect() bool {
	e := globalState.epoch.Load()

	abandon := false
	globalState.list.visit(func(p *Participant) bool {
		if p.active.Load() && p.csCount.Value > 0 && p.localEpoch.Value.Load() != e {
			abandon = true
			return false
		}
		return true
	})
	if abandon {
		return false
	}

	if !globalState.epoch.CompareAndSwap(e, e+1) {
		return false
	}

	// The generation that was "old" relative to e+1 (i.e. e+1-2 mod 3,
	// equivalently (e+1+1) mod 3) is now known unreachable by anyone:
	// every participant still pinned was observed above to be at the
	// current epoch e, so after this bump no one can be two generations
	// behind.
	globalState.bags[(e+1+1)%3].collect()
	return true
}

// TryCollect exposes tryCollect for callers outside this package (such as
// tests) that want to force a collection attempt outside of
// Pin/Unpin's opportunistic trigger, e.g. to deterministically drain
// garbage at the end of a test scenario (spec.md §8 scenario (d)).
func TryCollect() bool {
	return tryCollect()
}

// ForceCollect repeatedly attempts collection until three consecutive
// epoch advances have happened. A failed attempt resets the count, and
// ForceCollect keeps retrying for as long as a pinned participant holds
// the epoch back. Three successful advances free every global garbage
// generation that was populated before the call, since each of the three
// global bags is collected once along the way.
// ForceCollect 反复尝试回收，直到连续完成三次成功的 epoch 推进；失败会把计数清零并继续重试。
// 连续三次成功推进会把调用前已存在的每一代全局垃圾都释放一次。
func ForceCollect() {
	const generations = 3
	advances := 0
	for advances < generations {
		if tryCollect() {
			advances++
		} else {
			advances = 0
		}
	}
}
