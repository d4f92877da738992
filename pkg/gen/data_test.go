package gen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeleteIndex(t *testing.T) {
	a := []int{1, 2, 3}
	b := DeleteIndex(a, -1)
	require.Equal(t, []int{1, 2, 3}, b)

	a = []int{1, 2, 3}
	b = DeleteIndex(a, 0)
	require.Equal(t, []int{2, 3}, b)

	a = []int{1, 2, 3}
	b = DeleteIndex(a, 1)
	require.Equal(t, []int{1, 3}, b)

	a = []int{1, 2, 3}
	b = DeleteIndex(a, 2)
	require.Equal(t, []int{1, 2}, b)

	a = []int{1}
	b = DeleteIndex(a, 0)
	require.Equal(t, []int{}, b)

	a = []int{1}
	b = DeleteIndex(a, 1)
	require.Equal(t, []int{1}, b)
}

func TestCopySlice(t *testing.T) {
	require.Nil(t, CopySlice[int](nil))
	a := []int{1, 2}
	b := CopySlice(a)
	b[0] = 5
	require.Equal(t, 1, a[0])
}

func TestClampMinMax(t *testing.T) {
	require.Equal(t, 5, Clamp(9, 0, 5))
	require.Equal(t, 0, Clamp(-3, 0, 5))
	require.Equal(t, float32(2.5), Clamp(float32(2.5), 0, 5))
	lo, hi := MinMax(7, 3)
	require.Equal(t, 3, lo)
	require.Equal(t, 7, hi)
	require.Equal(t, 4, Abs(-4))
}

func TestDrainChannelIntoSlice(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	require.Equal(t, []int{1, 2}, DrainChannelIntoSlice(ch))
	require.Equal(t, []int{}, DrainChannelIntoSlice(ch))
}
