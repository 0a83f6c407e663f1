package segqueue_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/schets/crossbeam/segqueue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSingleThreadFIFO(t *testing.T) {
	q := segqueue.New[int]()
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

// TestCrossesSegmentBoundary forces several segment rollovers with a
// small segment size, exercising the i+1==segmentLen allocate-and-publish
// path on the producer side and the l+1==segmentLen head-advance path on
// the consumer side.
func TestCrossesSegmentBoundary(t *testing.T) {
	const segLen = 4
	const n = segLen*3 + 1
	q := segqueue.New[int](segqueue.WithSegmentSize(segLen))

	for i := 0; i < n; i++ {
		q.Push(i)
	}
	for i := 0; i < n; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

// TestMPMCDrain is spec.md §8 scenario (c): a single producer pushes
// 0..n; several consumers concurrently drain the queue. Every consumer
// must observe a strictly increasing subsequence, and the union of what
// they consume must equal {0..n} with no duplicates.
func TestMPMCDrain(t *testing.T) {
	const n = 200_000
	const consumers = 4

	q := segqueue.New[int](segqueue.WithSegmentSize(32))

	seen := make([]int32, n)
	var consumed atomic.Int64

	var producerWG sync.WaitGroup
	producerWG.Add(1)
	go func() {
		defer producerWG.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
	}()

	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			prev := -1
			for consumed.Load() < int64(n) {
				v, ok := q.TryPop()
				if !ok {
					if consumed.Load() >= int64(n) {
						return
					}
					continue
				}
				assert.Greater(t, v, prev, "consumer observed a non-increasing subsequence")
				prev = v
				assert.True(t, atomic.CompareAndSwapInt32(&seen[v], 0, 1), "item %d consumed more than once", v)
				consumed.Add(1)
			}
		}()
	}

	producerWG.Wait()
	consumerWG.Wait()

	for i, v := range seen {
		require.EqualValuesf(t, 1, v, "item %d never consumed", i)
	}
}
