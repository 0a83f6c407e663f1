package epoch

import "sync/atomic"

// participantList is the intrusive singly-linked list of every Participant
// that has ever registered, appended to lock-free at the head and lazily
// pruned by readers during traversal.
//
// spec.md §9 notes that the source carries two differently-coordinated
// traversal variants and asks to pick "the writable boolean variant as the
// canonical design." That is implemented here: writable is a single flag
// that at most one traversing goroutine holds at a time, giving that
// goroutine (and only that goroutine) permission to physically unlink
// inactive participants it walks past. Every other concurrent traversal
// still observes a correct (if momentarily un-pruned) list — this mirrors
// the single-writer-hint idiom in the teacher's sync/map.go, generalized
// from "one goroutine promotes the dirty map" to "one goroutine prunes
// dead participants."
// participantList 是侵入式单向链表，保存所有曾经注册过的 Participant：头插式无锁追加，
// 由遍历者惰性地物理删除失活节点。writable 标志同一时刻至多被一个遍历者持有，只有持有者
// 才有权物理摘除沿途遇到的失活节点；其余并发遍历仍能看到正确（只是暂未被剪枝）的链表。
type participantList struct {
	head     atomic.Pointer[Participant]
	writable atomic.Bool
}

// append prepends p to the list. p must not already be linked.
// append 将 p 头插到链表中，p 不能已经挂在链上。
func (l *participantList) append(p *Participant) {
	for {
		old := l.head.Load()
		p.next.Store(old)
		if l.head.CompareAndSwap(old, p) {
			return
		}
	}
}

// visit walks every participant currently in the list, calling fn on each.
// If fn returns false, the walk stops early. While walking, the goroutine
// that wins the writable race also physically unlinks any participant it
// finds with active == false.
// visit 遍历链表中的每个 participant 并调用 fn；fn 返回 false 时提前终止遍历。赢得
// writable 竞争的遍历者还会顺手物理摘除沿途遇到的 active == false 的节点。
func (l *participantList) visit(fn func(*Participant) bool) {
	canPrune := l.writable.CompareAndSwap(false, true)
	if canPrune {
		defer l.writable.Store(false)
	}

	prev := &l.head
	curr := prev.Load()
	for curr != nil {
		next := curr.next.Load()
		if canPrune && !curr.active.Load() && prev.CompareAndSwap(curr, next) {
			// Unlinked curr; prev stays where it is and curr is
			// skipped entirely, including from fn.
			curr = next
			continue
		}
		if !fn(curr) {
			return
		}
		prev = &curr.next
		curr = next
	}
}
