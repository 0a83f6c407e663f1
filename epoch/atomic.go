package epoch

import "sync/atomic"

// Atomic is an atomic nullable pointer to a heap allocation of type T,
// generalizing spec.md §3's "Atomic pointer" and the generic
// atomic.Pointer[T] publish/CAS/swap pattern shown across the retrieved
// corpus (other_examples' atomic-pointer.go demo) to the guard-scoped
// Owned/Shared vocabulary spec.md §4.4 specifies.
// Atomic 是指向 T 类型堆分配的原子可空指针，把 atomic.Pointer[T] 的发布/CAS/swap 模式
// 推广为带守卫作用域的 Owned/Shared 语义。
type Atomic[T any] struct {
	ptr atomic.Pointer[T]
}

// Owned is exclusive, unpublished ownership of a heap allocation of T.
// Nothing else can observe it until it is stored into an Atomic.
// Owned 是对一块尚未发布的 T 类型堆分配的独占所有权，在被存入某个 Atomic 之前，没有其他
// 代码可以观测到它。
type Owned[T any] struct {
	ptr *T
}

// NewOwned allocates v on the heap and returns exclusive ownership of it.
func NewOwned[T any](v T) Owned[T] {
	return Owned[T]{ptr: &v}
}

// NullOwned is the "no value" Owned, the Go stand-in for spec.md's
// Option<Owned<T>>.
func NullOwned[T any]() Owned[T] {
	return Owned[T]{}
}

// IsNull reports whether this Owned holds no value.
func (o Owned[T]) IsNull() bool { return o.ptr == nil }

// Ptr returns the underlying pointer for direct field initialization
// before publication. Safe because an Owned value, by construction, is
// not yet reachable from any other goroutine.
func (o Owned[T]) Ptr() *T { return o.ptr }

// OwnedFromPtr reclaims a raw pointer as Owned. Only sound when the
// caller can prove nothing else will treat the same address as
// exclusively owned at the same time — the one place this module uses it
// is queue construction, where a single sentinel node's address is
// published through two atomic fields (head and tail) before any other
// goroutine can observe either.
func OwnedFromPtr[T any](p *T) Owned[T] {
	return Owned[T]{ptr: p}
}

// Shared is a borrowed reference to a node reachable through an Atomic,
// valid for the lifetime of the Guard it was loaded or stored under.
// Shared 是通过某个 Atomic 可达的借用引用，其有效期与取得它时所用的 Guard 相同。
type Shared[T any] struct {
	ptr *T
}

// NullShared is the "no value" Shared, the Go stand-in for
// spec.md's Option<Shared<'g, T>>.
func NullShared[T any]() Shared[T] {
	return Shared[T]{}
}

// SharedFromPtr wraps an already-valid raw pointer as a Shared, for
// containers that keep a node's successor as a plain pointer (fixed at
// publish time, never mutated again) and need to republish it through an
// Atomic's CAS/Swap-with-Shared variants.
func SharedFromPtr[T any](p *T) Shared[T] {
	return Shared[T]{ptr: p}
}

// IsNull reports whether this Shared is the null pointer.
func (s Shared[T]) IsNull() bool { return s.ptr == nil }

// Ptr returns the underlying pointer. Dereferencing it is only sound for
// the lifetime of the Guard this Shared was obtained under — the Go
// compiler can't enforce that the way a borrow checker would, so callers
// must not let a Shared outlive the Guard that produced it, matching the
// contract spec.md §4.4 states in prose ("has the same lifetime as g").
func (s Shared[T]) Ptr() *T { return s.ptr }

// AsOwned reclaims s as an Owned, for the common pattern of loading a
// value, unlinking the container's reference to it, and then wanting sole
// ownership to extract its payload before Unlinked schedules the rest for
// destruction.
func (s Shared[T]) AsOwned() Owned[T] { return Owned[T]{ptr: s.ptr} }

// Load atomically reads the pointer. order must not be Release or AcqRel.
func (a *Atomic[T]) Load(order Ordering, _ Guard) Shared[T] {
	checkLoadOrdering(order)
	return Shared[T]{ptr: a.ptr.Load()}
}

// Store atomically writes v, transferring ownership into the Atomic. No
// reference is returned: per spec.md §4.4, the caller cannot observe the
// stored value without a subsequent Load. order must not be Acquire or
// AcqRel.
func (a *Atomic[T]) Store(v Owned[T], order Ordering) {
	checkStoreOrdering(order)
	a.ptr.Store(v.ptr)
}

// StoreAndRef stores v and returns a Shared reference to it valid for g's
// lifetime, for callers that need to keep operating on what they just
// published.
func (a *Atomic[T]) StoreAndRef(v Owned[T], order Ordering, _ Guard) Shared[T] {
	checkStoreOrdering(order)
	a.ptr.Store(v.ptr)
	return Shared[T]{ptr: v.ptr}
}

// CompareAndSwap compares the Atomic's current value against old (by raw
// pointer identity) and, if equal, stores new. On success ownership of new
// transfers into the Atomic. On failure, ownership of new is returned to
// the caller unchanged, matching spec.md §4.4's
// `Result<(), Option<Owned>>`.
func (a *Atomic[T]) CompareAndSwap(old Shared[T], new Owned[T], order Ordering) (ok bool, failed Owned[T]) {
	if a.ptr.CompareAndSwap(old.ptr, new.ptr) {
		return true, Owned[T]{}
	}
	return false, new
}

// CompareAndSwapAndRef behaves like CompareAndSwap but also returns a
// Shared reference to the newly published value on success.
func (a *Atomic[T]) CompareAndSwapAndRef(old Shared[T], new Owned[T], order Ordering, _ Guard) (Shared[T], Owned[T], bool) {
	if a.ptr.CompareAndSwap(old.ptr, new.ptr) {
		return Shared[T]{ptr: new.ptr}, Owned[T]{}, true
	}
	return Shared[T]{}, new, false
}

// CompareAndSwapShared is the "helping" variant: it republishes a
// reference the caller already observed (not newly owned memory), the
// pattern the MS queue uses to help another producer advance tail and the
// segmented queue uses to publish an already-allocated next segment.
func (a *Atomic[T]) CompareAndSwapShared(old, new Shared[T], order Ordering) bool {
	return a.ptr.CompareAndSwap(old.ptr, new.ptr)
}

// Swap atomically replaces the Atomic's value with v and returns a Shared
// reference to whatever was previously stored.
func (a *Atomic[T]) Swap(v Owned[T], order Ordering, _ Guard) Shared[T] {
	old := a.ptr.Swap(v.ptr)
	return Shared[T]{ptr: old}
}

// SwapShared is Swap's "already have a reference, not new ownership"
// counterpart.
func (a *Atomic[T]) SwapShared(v Shared[T], order Ordering, _ Guard) Shared[T] {
	old := a.ptr.Swap(v.ptr)
	return Shared[T]{ptr: old}
}
