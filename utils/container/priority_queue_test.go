package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/container"
)

func TestPriorityQueueInit(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueHeapOperation(t *testing.T) {
	q := container.NewPriorityQueue[string]()

	q.HeapPush("b", 2)
	q.HeapPush("a", 1)
	q.HeapPush("c", 3)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, "a", q.First())

	v, p := q.HeapPop()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)
	v, _ = q.HeapPop()
	assert.Equal(t, "b", v)
	v, _ = q.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueBatchHeapify(t *testing.T) {
	// 批量Push后Heapify，与信控里按压力取负值排序的用法一致
	q := container.NewPriorityQueue[int]()
	pressures := []float64{5, 12, 3}
	for i, pr := range pressures {
		q.Push(i, -pr) // 小顶堆，压力越大越靠前
	}
	q.Heapify()

	v, p := q.HeapPop()
	assert.Equal(t, 1, v)
	assert.Equal(t, -12.0, p)
	v, _ = q.HeapPop()
	assert.Equal(t, 0, v)
	v, _ = q.HeapPop()
	assert.Equal(t, 2, v)
}
