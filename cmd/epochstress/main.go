// Command epochstress drives mixed producer/consumer workloads against
// every container in this module and reports whether spec.md §8's
// randomized-stress expectations held: strict per-producer FIFO/LIFO
// ordering, no lost items, and (via -race / a leak detector run
// separately in the test suite) no torn state.
//
// This is deliberately not a benchmark harness — spec.md's non-goals
// exclude "benchmark harnesses" by name — it reports pass/fail on the
// invariants in scenarios (a) through (e), not throughput. It exists purely
// as ambient test tooling: a way to run the concrete scenarios at the
// scale (10^6 operations, 4-16 threads) spec.md §8's "Randomised stress"
// section calls for, outside of `go test`'s default timeout budget.
// epochstress 命令对本模块中的每个容器执行混合生产者/消费者压力测试，报告严格
// 的 FIFO/LIFO 顺序、无丢失条目等不变量是否成立；它不是基准测试工具（规格说明的
// Non-goals 明确排除了“基准测试工具”），只是用于按规格要求的规模跑一遍具体场景的
// 辅助测试工具。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/schets/crossbeam/epoch"
	"github.com/schets/crossbeam/msqueue"
	"github.com/schets/crossbeam/scope"
	"github.com/schets/crossbeam/segqueue"
	"github.com/schets/crossbeam/spscqueue"
	"github.com/schets/crossbeam/treiberstack"
)

func main() {
	var (
		items    = flag.Int("items", 1_000_000, "items pushed per producer")
		consumer = flag.Int("consumers", 3, "concurrent consumers for the segmented-queue scenario")
	)
	flag.Parse()

	scenarios := []struct {
		name string
		run  func(items, consumers int) error
	}{
		{"msqueue-single-thread", scenarioMSQueueOrdering},
		{"spsc-strict-fifo", scenarioSPSC},
		{"segqueue-mpmc-drain", scenarioSegQueueDrain},
		{"treiberstack-destructor", scenarioTreiberDestructor},
		{"participant-cleanup", scenarioParticipantCleanup},
	}

	failed := false
	for _, s := range scenarios {
		if err := s.run(*items, *consumer); err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", s.name, err)
			continue
		}
		fmt.Printf("ok   %s\n", s.name)
	}
	if failed {
		os.Exit(1)
	}
}

// scenarioMSQueueOrdering is spec.md §8 scenario (a), generalized to a
// configurable count instead of the literal 1,2,3.
func scenarioMSQueueOrdering(items, _ int) error {
	q := msqueue.New[int]()
	for i := 0; i < items; i++ {
		q.Push(i)
	}
	for i := 0; i < items; i++ {
		v, ok := q.TryPop()
		if !ok {
			return fmt.Errorf("item %d: queue emptied early", i)
		}
		if v != i {
			return fmt.Errorf("item %d: got %d, want %d", i, v, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		return fmt.Errorf("queue not empty after draining %d items", items)
	}
	return nil
}

// scenarioSPSC is spec.md §8 scenario (b): one producer sends 0..items,
// one consumer must observe exactly that sequence in order.
func scenarioSPSC(items, _ int) error {
	producer, consumer := spscqueue.New[int](1024)
	return scope.Run(func(s *scope.Scope) {
		s.Spawn(func() error {
			for i := 0; i < items; i++ {
				for {
					if _, ok := producer.TryPush(i); ok {
						break
					}
				}
			}
			producer.Close()
			return nil
		})
		s.Spawn(func() error {
			for want := 0; want < items; want++ {
				var got int
				var ok bool
				for {
					got, ok = consumer.TryPop()
					if ok {
						break
					}
				}
				if got != want {
					return fmt.Errorf("spsc: got %d, want %d", got, want)
				}
			}
			return nil
		})
	})
}

// scenarioSegQueueDrain is spec.md §8 scenario (c): a single producer
// pushes 0..items; `consumers` goroutines concurrently drain the queue,
// and the union of everything they consume must equal {0..items} with no
// duplicates and no gaps.
func scenarioSegQueueDrain(items, consumers int) error {
	q := segqueue.New[int]()
	seen := make([]bool, items)
	var seenMu sync.Mutex
	var consumed atomic.Int64

	err := scope.Run(func(s *scope.Scope) {
		s.SpawnFunc(func() {
			for i := 0; i < items; i++ {
				q.Push(i)
			}
		})
		for c := 0; c < consumers; c++ {
			s.Spawn(func() error {
				prev := -1
				for consumed.Load() < int64(items) {
					v, ok := q.TryPop()
					if !ok {
						if consumed.Load() >= int64(items) {
							return nil
						}
						continue
					}
					if prev != -1 && v < prev {
						return fmt.Errorf("consumer observed non-increasing subsequence: %d after %d", v, prev)
					}
					prev = v

					seenMu.Lock()
					dup := seen[v]
					seen[v] = true
					seenMu.Unlock()
					if dup {
						return fmt.Errorf("item %d consumed twice", v)
					}
					consumed.Add(1)
				}
				return nil
			})
		}
	})
	if err != nil {
		return err
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("item %d never consumed", i)
		}
	}
	return nil
}

// scenarioTreiberDestructor is spec.md §8 scenario (d): push and pop M
// items under pins, then a forced collection must have destroyed exactly
// M items.
func scenarioTreiberDestructor(items, _ int) error {
	var destroyed countingDestroyer
	stack := treiberstack.New[*countingDestroyer]()

	local := epoch.Register()

	for i := 0; i < items; i++ {
		g := local.Pin()
		stack.Push(&destroyed)
		g.Release()
	}
	for i := 0; i < items; i++ {
		g := local.Pin()
		if _, ok := stack.TryPop(); !ok {
			g.Release()
			return fmt.Errorf("item %d: stack emptied early", i)
		}
		g.Release()
	}

	// Unregister unconditionally migrates this participant's remaining
	// local garbage to the global bags before going inactive, so the
	// forced collection below has something to walk.
	local.Unregister()
	epoch.ForceCollect()
	n := destroyed.count()
	if n != items {
		return fmt.Errorf("destructor ran %d times, want %d", n, items)
	}
	return nil
}

type countingDestroyer struct{ n int }

func (d *countingDestroyer) Destroy() { d.n++ }
func (d *countingDestroyer) count() int {
	return d.n
}

// scenarioParticipantCleanup is spec.md §8 scenario (e): 100 short-lived
// participants register, pin once, and unregister, then a forced
// collection runs. The scenario passes when that churn completes; it does
// not inspect the participant list.
func scenarioParticipantCleanup(_, _ int) error {
	const shortLived = 100

	err := scope.Run(func(s *scope.Scope) {
		for i := 0; i < shortLived; i++ {
			s.SpawnFunc(func() {
				l := epoch.Register()
				g := l.Pin()
				g.Release()
				l.Unregister()
			})
		}
	})
	if err != nil {
		return err
	}

	epoch.ForceCollect()
	return nil
}

func init() {
	log.SetFlags(0)
}
