package epoch_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/schets/crossbeam/epoch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testNode is a minimal heap allocation published through an
// epoch.Atomic, with a destructor counter for the "at-most-once free"
// and destructor-timing tests below.
type testNode struct {
	destroyed *int
}

func (n *testNode) Destroy() {
	*n.destroyed++
}

// TestReentrancy is spec.md §8 invariant 8: nesting N pin guards and
// releasing them in LIFO order must leave the participant's
// critical-section counter unchanged (i.e. back at zero, ready for the
// next pin from scratch).
func TestReentrancy(t *testing.T) {
	local := epoch.Register()
	defer local.Unregister()

	const depth = 16
	var guards [depth]epoch.Guard
	for i := 0; i < depth; i++ {
		guards[i] = local.Pin()
	}
	for i := depth - 1; i >= 0; i-- {
		guards[i].Release()
	}

	// The participant should behave exactly as if it had never been
	// pinned: a fresh pin/release pair works with no leftover state.
	g := local.Pin()
	g.Release()
}

// TestAtomicStoreLoadRoundTrip exercises the core Atomic/Owned/Shared
// vocabulary: a stored value is observable through Load, and a CAS
// against the observed value succeeds exactly once.
func TestAtomicStoreLoadRoundTrip(t *testing.T) {
	var a epoch.Atomic[int]

	g := epoch.Pin()
	a.Store(epoch.NewOwned(42), epoch.Relaxed)
	got := a.Load(epoch.Acquire, g)
	require.False(t, got.IsNull())
	assert.Equal(t, 42, *got.Ptr())

	ok, failed := a.CompareAndSwap(got, epoch.NewOwned(43), epoch.Relaxed)
	require.True(t, ok)
	assert.True(t, failed.IsNull())

	// A second CAS against the now-stale `got` reference must fail and
	// hand ownership of the proposed value back to the caller.
	ok, failed = a.CompareAndSwap(got, epoch.NewOwned(44), epoch.Relaxed)
	require.False(t, ok)
	assert.Equal(t, 44, *failed.Ptr())
	g.Release()
}

// TestOrderingChecks is spec.md §7's "usage errors... react with an
// assertion failure" policy applied to §4.4's load/store ordering rule.
func TestOrderingChecks(t *testing.T) {
	var a epoch.Atomic[int]
	g := epoch.Pin()
	defer g.Release()

	assert.Panics(t, func() { a.Load(epoch.Release, g) })
	assert.Panics(t, func() { a.Load(epoch.AcqRel, g) })
	assert.NotPanics(t, func() { a.Load(epoch.Acquire, g) })
	assert.NotPanics(t, func() { a.Load(epoch.Relaxed, g) })

	assert.Panics(t, func() { a.Store(epoch.NewOwned(1), epoch.Acquire) })
	assert.Panics(t, func() { a.Store(epoch.NewOwned(1), epoch.AcqRel) })
	assert.NotPanics(t, func() { a.Store(epoch.NewOwned(1), epoch.Release) })
	assert.NotPanics(t, func() { a.Store(epoch.NewOwned(1), epoch.Relaxed) })
}

// TestUnlinkedDestroysExactlyOnce is spec.md §8 invariants 1-2: a value
// unlinked under a guard is not destroyed until a forced collection runs,
// and is then destroyed exactly once.
func TestUnlinkedDestroysExactlyOnce(t *testing.T) {
	var a epoch.Atomic[testNode]
	destroyed := 0
	a.Store(epoch.NewOwned(testNode{destroyed: &destroyed}), epoch.Relaxed)

	g := epoch.Pin()
	shared := a.Load(epoch.Acquire, g)
	require.False(t, shared.IsNull())

	epoch.Unlinked(g, shared)
	g.Release()

	// Not yet destroyed: nothing has forced a collection.
	assert.Equal(t, 0, destroyed)

	epoch.ForceCollect()
	assert.Equal(t, 1, destroyed)
}

// TestParticipantCleanup runs spec.md §8 scenario (e)'s churn: short-lived
// participants register, pin once, and unregister, then a collection
// runs. It checks that the long-lived participant can still pin
// afterwards; it does not inspect the participant list itself.
func TestParticipantCleanup(t *testing.T) {
	const shortLived = 100

	longLived := epoch.Register()
	defer longLived.Unregister()
	lg := longLived.Pin()
	lg.Release()

	var wg sync.WaitGroup
	wg.Add(shortLived)
	for i := 0; i < shortLived; i++ {
		go func() {
			defer wg.Done()
			l := epoch.Register()
			g := l.Pin()
			g.Release()
			l.Unregister()
		}()
	}
	wg.Wait()

	epoch.ForceCollect()

	// A fresh pin/release through the long-lived participant must still
	// work — the cleanup pass must never have pruned it.
	g := longLived.Pin()
	g.Release()
}

// TestPoolBackedPin exercises the package-level Pin convenience path
// (backed by localPool) rather than an explicit Register.
func TestPoolBackedPin(t *testing.T) {
	for i := 0; i < 64; i++ {
		g := epoch.Pin()
		g.Release()
	}
}

// TestWithGCDisabledRestoresPreviousState checks spec.md §9's "disable
// nested in enable is honoured... restore on drop" requirement.
func TestWithGCDisabledRestoresPreviousState(t *testing.T) {
	local := epoch.Register()
	defer local.Unregister()

	local.WithGCDisabled(func() {
		local.WithGCEnabled(func() {
			local.WithGCDisabled(func() {
				g := local.Pin()
				g.Release()
			})
			// Back to enabled here.
			g := local.Pin()
			g.Release()
		})
		// Back to disabled here.
		g := local.Pin()
		g.Release()
	})
}
