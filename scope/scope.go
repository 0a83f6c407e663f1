// Package scope implements spec.md §6's thread-scope helper: Run(func(s)
// { s.Spawn(...); ... }) joins every spawned goroutine before returning
// and re-raises a spawned goroutine's fatal error (including a panic) in
// the caller.
//
// This generalizes the teacher's sync.WaitGroup — Add before spawning,
// Done when a goroutine finishes, Wait blocks until the counter reaches
// zero — onto golang.org/x/sync/errgroup's Group, which already gives
// "join everyone, return the first error" for free. What errgroup
// doesn't give is panic propagation, so Spawn recovers a spawned
// goroutine's panic the way spec.md §7 requires ("critical sections are
// panic-hostile; ... guard release ... still run[s]") and Run re-panics
// it once every goroutine has joined, rather than letting it surface as
// an ordinary error or crash the whole process silently in a goroutine
// no one was watching.
// scope 包实现线程作用域辅助工具：Run(func(s) { s.Spawn(...); ... }) 会在返回前
// 等待所有派生的 goroutine 结束，并把某个 goroutine 的致命错误（含 panic）在调用者一侧
// 重新抛出。
package scope

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// panicValue wraps a recovered panic so it can travel through errgroup's
// error-based join and be re-raised, stack trace intact, once everyone
// has returned.
type panicValue struct {
	value any
	stack []byte
}

func (p *panicValue) Error() string {
	return fmt.Sprintf("scope: spawned goroutine panicked: %v\n%s", p.value, p.stack)
}

// Scope lets goroutines be spawned within the dynamic extent of a Run
// call. A Scope must not be used after the Run call that produced it has
// returned.
type Scope struct {
	g *errgroup.Group
}

// Run invokes fn with a fresh Scope, then blocks until every goroutine
// spawned on that Scope has returned. Run acts on the first failure the
// errgroup records: a returned error is returned as is, and a recovered
// panic is re-raised with that goroutine's original panic value after
// every other spawned goroutine has joined. Failures after the first are
// dropped, so a panic that follows another goroutine's error is not
// re-raised; Run returns that error instead.
func Run(fn func(s *Scope)) error {
	var g errgroup.Group
	fn(&Scope{g: &g})

	err := g.Wait()
	if pv, ok := err.(*panicValue); ok {
		panic(pv.value)
	}
	return err
}

// Spawn runs fn in a new goroutine scoped to s. fn's return error, or a
// recovered panic, is observed by the enclosing Run call.
func (s *Scope) Spawn(fn func() error) {
	s.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicValue{value: r, stack: debug.Stack()}
			}
		}()
		return fn()
	})
}

// SpawnFunc is Spawn for goroutines with no error to report — only a
// possible panic.
func (s *Scope) SpawnFunc(fn func()) {
	s.Spawn(func() error {
		fn()
		return nil
	})
}
