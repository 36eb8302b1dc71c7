package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDoc(uid string, extra map[string]any) map[string]any {
	doc := map[string]any{
		"uid":        uid,
		"scan_id":    float64(101),
		"time":       float64(1700000000),
		"plan_name":  "scan",
		"num_points": float64(4),
	}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

func TestRunBuffersPrimaryEvents(t *testing.T) {
	run := NewRun(startDoc("abc", nil))
	run.Process("descriptor", map[string]any{"uid": "d1", "name": "primary"})
	run.Process("descriptor", map[string]any{"uid": "d2", "name": "baseline"})

	run.Process("event", map[string]any{
		"descriptor": "d1",
		"time":       float64(1.0),
		"data":       map[string]any{"det": float64(3.5), "mot1": float64(0.1)},
	})
	// Baseline events are ignored.
	run.Process("event", map[string]any{
		"descriptor": "d2",
		"time":       float64(1.5),
		"data":       map[string]any{"det": float64(99)},
	})
	run.Process("event", map[string]any{
		"descriptor": "d1",
		"time":       float64(2.0),
		"data":       map[string]any{"det": float64(4.5), "mot1": float64(0.2)},
	})

	det, err := run.Data("det")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, det.Shape)
	assert.Equal(t, []float64{3.5, 4.5}, det.Data)

	// Event timestamps are buffered under "time" when absent from data.
	tm, err := run.Data("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, tm.Data)

	assert.True(t, run.Live())
	run.Process("stop", map[string]any{"exit_status": "success"})
	assert.False(t, run.Live())
}

func TestRunEventPageAndImageSamples(t *testing.T) {
	run := NewRun(startDoc("img", nil))
	run.Process("descriptor", map[string]any{"uid": "d1", "name": "primary"})
	run.Process("event_page", map[string]any{
		"descriptor": "d1",
		"time":       []any{float64(1), float64(2)},
		"data": map[string]any{
			"img": []any{
				[]any{float64(1), float64(2), float64(3)},
				[]any{float64(4), float64(5), float64(6)},
			},
		},
	})

	img, err := run.Data("img")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, img.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, img.Data)

	shapes := run.SignalShapes()
	assert.Equal(t, []int{2, 3}, shapes["img"])
	assert.Equal(t, []int{2}, shapes["time"])
}

func TestRunBufferedPointsTrailsDeclared(t *testing.T) {
	run := NewRun(startDoc("bp", nil))
	assert.Equal(t, 0, run.BufferedPoints())

	run.Process("descriptor", map[string]any{"uid": "d1", "name": "primary"})
	for i := 0; i < 2; i++ {
		run.Process("event", map[string]any{
			"descriptor": "d1",
			"time":       float64(i),
			"data":       map[string]any{"det": float64(i)},
		})
	}

	// Two of the declared four points are in, regardless of shape.
	assert.Equal(t, 2, run.BufferedPoints())
	assert.Equal(t, 4, run.NumPoints())
	assert.True(t, run.Live())
}

func TestRunUnknownSignalIsEmpty(t *testing.T) {
	run := NewRun(startDoc("u", nil))
	arr, err := run.Data("missing")
	require.NoError(t, err)
	assert.Equal(t, 0, arr.Size())
}

func TestRunTargetShapeAndRepeat(t *testing.T) {
	run := NewRun(startDoc("r", map[string]any{
		"shape":  []any{float64(10), float64(50)},
		"repeat": map[string]any{"index": float64(1), "len": float64(3)},
	}))
	assert.Equal(t, []int{10, 50}, run.TargetShape())

	meta, ok := run.Repeat()
	require.True(t, ok)
	assert.Equal(t, RepeatMeta{Index: 1, Len: 3}, meta)

	plain := NewRun(startDoc("p", nil))
	assert.Equal(t, []int{4}, plain.TargetShape())
	_, ok = plain.Repeat()
	assert.False(t, ok)
}

func TestRunDimensions(t *testing.T) {
	run := NewRun(startDoc("d", map[string]any{
		"hints": map[string]any{
			"dimensions": []any{
				[]any{[]any{"mot1"}, "primary"},
				[]any{[]any{"mot2", "mot3"}, "primary"},
			},
		},
	}))
	assert.Equal(t, [][]string{{"mot1"}, {"mot2", "mot3"}}, run.Dimensions())
}

func TestRunGeneratesUID(t *testing.T) {
	run := NewRun(map[string]any{"scan_id": float64(5)})
	assert.NotEmpty(t, run.UID())
}

func TestRunFinishesAtExpectedPoints(t *testing.T) {
	run := NewRun(startDoc("n", map[string]any{"num_points": float64(2)}))
	run.Process("descriptor", map[string]any{"uid": "d1", "name": "primary"})
	for i := 0; i < 2; i++ {
		run.Process("event", map[string]any{
			"descriptor": "d1",
			"time":       float64(i),
			"data":       map[string]any{"det": float64(i)},
		})
	}
	assert.False(t, run.Live())
}

func TestRunDocumentsReplayRoundTrip(t *testing.T) {
	run := NewRun(startDoc("orig", map[string]any{"num_points": float64(2)}))
	run.Process("descriptor", map[string]any{"uid": "d1", "name": "primary"})
	for i := 0; i < 2; i++ {
		run.Process("event", map[string]any{
			"descriptor": "d1",
			"time":       float64(i),
			"data": map[string]any{
				"det": float64(i * 3),
				"img": []any{[]any{float64(i), float64(i + 1)}},
			},
		})
	}
	run.SetStop(map[string]any{"run_start": "orig", "exit_status": "success"})

	rebuilt := NewRun(run.Documents()[0].Doc)
	for _, d := range run.Documents()[1:] {
		rebuilt.Process(d.Name, d.Doc)
	}

	assert.Equal(t, run.UID(), rebuilt.UID())
	assert.False(t, rebuilt.Live())
	for _, key := range []string{"time", "det", "img"} {
		want, err := run.Data(key)
		require.NoError(t, err)
		got, err := rebuilt.Data(key)
		require.NoError(t, err)
		assert.Equal(t, want.Shape, got.Shape, key)
		assert.Equal(t, want.Data, got.Data, key)
	}
}
