package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelize(t *testing.T) {
	t.Run("covers every item exactly once", func(t *testing.T) {
		const items = 1000
		var hits [items]int32

		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "item %d", i)
		}
	})

	t.Run("zero items", func(t *testing.T) {
		called := false
		Parallelize(0, func(int, int) { called = true })
		assert.False(t, called)
	})

	t.Run("fewer items than cores", func(t *testing.T) {
		var count int32
		Parallelize(3, func(start, end int) {
			atomic.AddInt32(&count, int32(end-start))
		})
		assert.Equal(t, int32(3), count)
	})
}

func TestParallelizeWithThreshold(t *testing.T) {
	var ranges [][2]int
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		ranges = append(ranges, [2]int{start, end})
	})
	// Below the threshold everything runs as one sequential range.
	assert.Equal(t, [][2]int{{0, 10}}, ranges)
}

func TestForEach(t *testing.T) {
	const items = 64
	var hits [items]int32

	ForEach(items, func(i int) {
		atomic.AddInt32(&hits[i], 1)
	})
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}
