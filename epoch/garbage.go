package epoch

import "github.com/schets/crossbeam/epoch/internal/lfstack"

// deferred is a type-erased deferred-free record: a destructor captured at
// the point guard.Unlinked was called, closing over the unlinked pointer.
// The teacher's workbuf (runtime/mgcwork.go) only ever stores uintptr
// object addresses because the GC already knows how to trace and free any
// heap pointer; a general-purpose library has no such luxury; a bag entry
// has to remember *how* to free whatever it was handed. A captured closure
// is the direct generalization of the teacher's "(void*, destructor_fn)"
// pair noted in spec.md's Design Notes.
// deferred 是一条类型擦除的延迟释放记录：在调用 guard.Unlinked 时捕获的析构闭包。
type deferred struct {
	run func()
}

// Bag is a fixed-owner collection of deferred-free records. Each
// participant keeps three (old/cur/new); donated bags are also what the
// global garbage stacks hold.
// Bag 是一个固定归属的延迟释放记录集合。每个 participant 持有三个（old/cur/new）；
// 全局垃圾栈中存放的也是被捐赠出去的 Bag。
type Bag struct {
	node  lfstack.Node[Bag]
	items []deferred
}

// LFNode implements lfstack.Linked so a *Bag can be pushed onto a
// lfstack.Stack directly.
func (b *Bag) LFNode() *lfstack.Node[Bag] { return &b.node }

func newBag() *Bag {
	return &Bag{}
}

func (b *Bag) push(d deferred) {
	b.items = append(b.items, d)
}

// len reports how many deferred frees are queued in this bag.
func (b *Bag) len() int {
	return len(b.items)
}

// free runs every destructor in the bag and empties it. Called only once
// the bag's generation is known to be globally unreachable.
// free 执行袋子里每一条析构记录并清空它。只有在该代已知全局不可达时才会被调用。
func (b *Bag) free() {
	for _, d := range b.items {
		d.run()
	}
	b.items = nil
}

// globalBag is one of the three process-wide garbage generations
// (spec.md §3, "Global garbage"): a lock-free Treiber stack of bags
// donated by departing or migrating participants.
// globalBag 是三个全局垃圾代之一：由退出或迁移的 participant 捐赠的 Bag 构成的无锁栈。
type globalBag struct {
	stack lfstack.Stack[Bag, *Bag]
}

// insert donates a local bag to the global generation. Ownership transfers
// to the global stack; the caller must not touch bag again.
// insert 将一个本地 Bag 捐赠给全局代，所有权随之转移，调用方此后不得再碰这个 bag。
func (g *globalBag) insert(bag *Bag) {
	if bag == nil || bag.len() == 0 {
		return
	}
	g.stack.Push(bag)
}

// collect frees every bag currently in this generation. Per spec.md §4.9,
// an empty fast-path avoids the swap when the head is already nil.
// collect 释放当前代中的全部 Bag；按 spec 要求，head 已经为空时直接走快速路径，跳过 swap。
func (g *globalBag) collect() {
	if g.stack.Empty() {
		return
	}
	bag := g.stack.Take()
	for bag != nil {
		next := bag.node.Next()
		bag.free()
		bag = next
	}
}
