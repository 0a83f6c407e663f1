// Package cacheline pads hot values so they occupy a whole cache line,
// preventing false sharing between unrelated counters that live next to
// each other in a struct.
// cacheline 包将热点值填充到占满一整条缓存行，避免相邻的无关计数器之间发生伪共享。
package cacheline

// Size is the assumed cache line size in bytes. 64 covers essentially every
// x86-64 and arm64 part this module targets; getting it wrong costs
// performance, not correctness, so a single constant is good enough instead
// of runtime CPUID probing.
// Size 是假定的缓存行字节数。写死为64对绝大多数 x86-64/arm64 已经够用；猜错只损失性能，不影响正确性。
const Size = 64

// Pad wraps a value of type T with trailing filler bytes so that the
// struct containing it spans at least one full cache line. Embed Pad[T]
// instead of T directly for any field that is written frequently by one
// thread and read by others, such as a participant's local epoch or
// critical-section counter. Array length must be a constant expression in
// Go, so unlike the teacher's hand-sized runtime structs this pads by a
// fixed amount rather than computing the exact remainder for every T;
// for the small scalar counters this module pads (epoch values, pin
// counts), that fixed amount already clears a full line.
// Pad 用尾部填充字节包装类型 T 的值，使容纳它的结构体至少占满一条缓存行。对于被一个线程频繁写、
// 被其他线程读的字段（例如 participant 的本地 epoch 或临界区计数），应当内嵌 Pad[T] 而不是直接用 T。
type Pad[T any] struct {
	Value T
	_     [Size]byte
}
