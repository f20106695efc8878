package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPop(t *testing.T) {
	q := New[int]()

	q.Push(1, 2, 3)
	assert.Equal(t, 3, q.Len())

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, item)

	item, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, item)

	assert.Equal(t, 1, q.Len())
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New[string]()

	item, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, "", item)
}

func TestQueue_Empty(t *testing.T) {
	q := New[int]()
	assert.True(t, q.Empty())

	q.Push(1)
	assert.False(t, q.Empty())

	q.Pop()
	assert.True(t, q.Empty())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	items := q.GetAndEmpty()
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.True(t, q.Empty())

	assert.Empty(t, q.GetAndEmpty())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, q.Len())
}
