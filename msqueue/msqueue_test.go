package msqueue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/schets/crossbeam/msqueue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestSingleThreadFIFO is spec.md §8 scenario (a).
func TestSingleThreadFIFO(t *testing.T) {
	q := msqueue.New[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestEmptyQueue(t *testing.T) {
	q := msqueue.New[string]()
	_, ok := q.TryPop()
	assert.False(t, ok)
}

// TestPerProducerFIFO is spec.md §8 invariant 3: pushes from the same
// producer are observed in order, even with many concurrent producers
// racing against several consumers. Each consumer pops and records under
// one mutex, so the recorded order is the queue's own pop order.
func TestPerProducerFIFO(t *testing.T) {
	const producers = 8
	const perProducer = 5000

	q := msqueue.New[[2]int]() // [producerID, sequence]

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}()
	}

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}

	var mu sync.Mutex
	var consumerWG sync.WaitGroup
	const consumers = 4
	total := 0
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				mu.Lock()
				done := total >= producers*perProducer
				if done {
					mu.Unlock()
					return
				}
				v, ok := q.TryPop()
				if !ok {
					mu.Unlock()
					continue
				}
				assert.Greater(t, v[1], lastSeen[v[0]])
				lastSeen[v[0]] = v[1]
				total++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	consumerWG.Wait()

	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer-1, lastSeen[p])
	}
}

// TestNoLostItems is spec.md §8 invariant 7.
func TestNoLostItems(t *testing.T) {
	const n = 20000
	q := msqueue.New[int]()
	for i := 0; i < n; i++ {
		q.Push(i)
	}
	count := 0
	for {
		if _, ok := q.TryPop(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, n, count)
}

type destructorCounted struct {
	n *int
}

func (d destructorCounted) Destroy() { *d.n++ }

func TestDestroyDelegation(t *testing.T) {
	q := msqueue.New[destructorCounted]()
	var n int
	q.Push(destructorCounted{n: &n})
	_, ok := q.TryPop()
	require.True(t, ok)
	// Destroy only runs once the unlinked node is actually collected;
	// msqueue's own forced collection path is exercised via the epoch
	// package's tests, so here we only assert the pop succeeded and the
	// node's value survived the round trip untouched.
	assert.Equal(t, 0, n)
}
