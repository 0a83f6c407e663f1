package epoch

import (
	"sync/atomic"

	"github.com/schets/crossbeam/epoch/internal/cacheline"
)

// collectThreshold is the number of unlinked items queued in a
// participant's newest bag before the last unpin of a critical section
// (Guard.Release) opportunistically attempts tryCollect; pin itself never
// attempts a collection. Named in spec.md §6 as the "GC collection
// threshold."
const collectThreshold = 32

// migrateThreshold is the number of unlinked items a participant pinning
// with GC disabled (the "pin-nogc" path) will tolerate locally before
// donating its accumulated garbage to the global bags regardless. Named
// in spec.md §6 as the "GC migration threshold": with opportunistic
// collection suppressed by WithGCDisabled, a participant could otherwise
// accumulate unlinked items forever, so pin still bounds the damage by
// migrating (not collecting — that still requires a normal unpin to try) at
// this threshold. Unregister also migrates unconditionally, for the
// symmetric reason that a departing participant's bags otherwise
// never get collected at all.
const migrateThreshold = 128

// Participant is the per-goroutine EBR record described in spec.md §3: a
// local epoch, a reentrant critical-section counter, an active flag, the
// intrusive link into the global participant list, and three generations
// of local garbage.
//
// The local epoch and the critical-section counter each sit on their own
// cache line (cacheline.Pad) to keep unrelated participants from
// bouncing the same line between cores, the same discipline the teacher
// applies to per-P counters via runtime/internal/sys's cache-line
// constants. The remaining fields are not padded.
// Participant 是每个 goroutine 的 EBR 记录：本地 epoch、可重入的临界区计数、存活标志、
// 挂入全局 participant 链表的指针，以及三代本地垃圾。本地 epoch 与临界区计数各自独占一条
// 缓存行，避免不同 participant 之间因共享缓存行而相互影响；其余字段不做填充。
type Participant struct {
	next   atomic.Pointer[Participant]
	active atomic.Bool

	localEpoch cacheline.Pad[atomic.Uint64]
	csCount    cacheline.Pad[int64] // only ever touched by the owning goroutine while pinned

	old, cur, new *Bag
	gcDisabled    bool // current enable/disable state; see WithGCDisabled
}

func newParticipant() *Participant {
	p := &Participant{
		old: newBag(),
		cur: newBag(),
		new: newBag(),
	}
	p.active.Store(true)
	return p
}

// pin enters a (possibly nested) critical section on this participant, per
// spec.md §4.2. The first (0->1) transition reads the global epoch and, if
// it has advanced since the last pin, rotates and frees the local bags.
// Nested pins only bump the counter.
// pin 进入（可能是嵌套的）临界区。从 0 到 1 的首次进入会读取全局 epoch，若相比上次 pin 已经
// 前进，则轮转并释放本地 Bag；嵌套的 pin 只会增加计数。
func (p *Participant) pin() Guard {
	if p.csCount.Value == 0 {
		e := globalState.epoch.Load()
		if cur := p.localEpoch.Value.Load(); cur != e {
			p.localEpoch.Value.Store(e)
			p.rotate()
		}
		if p.gcDisabled && p.pendingGarbage() >= migrateThreshold {
			p.migrate()
		}
	}
	p.csCount.Value++
	return Guard{p: p}
}

// unpin reverses one level of pin. On the last (1->0) exit, if the newest
// bag has accumulated enough garbage, it opportunistically attempts a
// collection. This never blocks: tryCollect either succeeds, loses a race,
// or is abandoned, and unpin returns either way.
// unpin 撤销一层 pin；在最后一次（1 到 0）退出时，若最新一代垃圾堆积足够多，会顺手尝试一次回收，
// 该尝试绝不阻塞。
func (p *Participant) unpin() {
	p.csCount.Value--
	if p.csCount.Value == 0 && !p.gcDisabled && p.new.len() >= collectThreshold {
		tryCollect()
	}
}

// rotate advances the local generations: new becomes cur, cur becomes old,
// and the previous old generation — now known unreachable by anyone who
// was pinned two epochs ago — is freed and reused as the new "new" bag.
// rotate 轮转本地三代：new 变 cur，cur 变 old；此前的 old 代（已知两次 epoch 前仍被固定的
// 线程都已退出）被释放并复用为新的 new 代。
func (p *Participant) rotate() {
	p.old.free()
	p.old, p.cur, p.new = p.cur, p.new, p.old
}

// migrate donates every non-empty local generation to the matching global
// bag. Used when a participant is about to become inactive (Unregister)
// and would otherwise sit on garbage that never gets collected again.
// migrate 将每一代非空本地垃圾捐赠给对应的全局代；用于 participant 即将失活（Unregister）时，
// 避免这些垃圾从此再也不会被回收。
func (p *Participant) migrate() {
	e := globalState.epoch.Load()
	globalState.bags[e%3].insert(p.new)
	globalState.bags[(e+2)%3].insert(p.cur)
	globalState.bags[(e+1)%3].insert(p.old)
	p.old, p.cur, p.new = newBag(), newBag(), newBag()
}

// pendingGarbage reports the total number of deferred frees held across
// all three local generations, checked against migrateThreshold by pin's
// pin-nogc path to decide whether migration is due.
func (p *Participant) pendingGarbage() int {
	return p.old.len() + p.cur.len() + p.new.len()
}
