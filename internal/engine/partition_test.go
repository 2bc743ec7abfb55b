package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds(t *testing.T) {
	cases := []struct {
		n, id, total int
		lo, hi       int
	}{
		{n: 10, id: 0, total: 1, lo: 0, hi: 10},
		{n: 10, id: 0, total: 3, lo: 0, hi: 4},
		{n: 10, id: 1, total: 3, lo: 4, hi: 7},
		{n: 10, id: 2, total: 3, lo: 7, hi: 10},
		{n: 2, id: 3, total: 4, lo: 2, hi: 2},
		{n: 0, id: 0, total: 2, lo: 0, hi: 0},
	}
	for _, tc := range cases {
		lo, hi, err := Bounds(tc.n, tc.id, tc.total)
		require.NoError(t, err)
		assert.Equal(t, tc.lo, lo, "n=%d id=%d total=%d", tc.n, tc.id, tc.total)
		assert.Equal(t, tc.hi, hi, "n=%d id=%d total=%d", tc.n, tc.id, tc.total)
	}

	_, _, err := Bounds(10, 3, 3)
	assert.Error(t, err)
	_, _, err = Bounds(10, -1, 3)
	assert.Error(t, err)
	_, _, err = Bounds(10, 0, 0)
	assert.Error(t, err)
}

func TestSplitCoversEveryItemOnce(t *testing.T) {
	items := make([]int, 101)
	for i := range items {
		items[i] = i
	}
	parts, err := Split(items, 7)
	require.NoError(t, err)
	require.Len(t, parts, 7)

	var joined []int
	for _, p := range parts {
		assert.InDelta(t, len(items)/7, len(p), 1)
		joined = append(joined, p...)
	}
	assert.Equal(t, items, joined)

	_, err = Split(items, 0)
	assert.Error(t, err)
}
