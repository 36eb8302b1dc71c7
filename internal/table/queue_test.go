package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRangesOverlapDedup(t *testing.T) {
	f := &fakeFetcher{length: 100}

	// Second range starts inside the first; it is skipped whole.
	rows := LoadRanges(context.Background(), f, []Range{
		{Start: 0, End: 9},
		{Start: 5, End: 14},
		{Start: 20, End: 24},
	})
	require.Len(t, f.calls, 2)
	assert.Equal(t, Range{Start: 0, End: 9}, f.calls[0])
	assert.Equal(t, Range{Start: 20, End: 24}, f.calls[1])
	assert.Len(t, rows, 15)
}

func TestLoadRangesFailureSkipsRange(t *testing.T) {
	f := &fakeFetcher{length: 100, fail: map[Range]bool{{Start: 10, End: 19}: true}}

	rows := LoadRanges(context.Background(), f, []Range{
		{Start: 0, End: 4},
		{Start: 10, End: 19},
		{Start: 30, End: 34},
	})
	// The failed range contributes nothing but does not stop the batch.
	assert.Len(t, rows, 10)
	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, 30, rows[5].Index)
}

func TestLoadRangesCancelled(t *testing.T) {
	f := &fakeFetcher{length: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := LoadRanges(ctx, f, []Range{{Start: 0, End: 9}})
	assert.Empty(t, rows)
	assert.Empty(t, f.calls)
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 5, End: 9}
	assert.True(t, r.contains(5))
	assert.True(t, r.contains(9))
	assert.False(t, r.contains(4))
	assert.False(t, r.contains(10))
}
