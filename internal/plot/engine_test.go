package plot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// buildRun assembles a completed run with the given start metadata and
// signals.
func buildRun(t *testing.T, start map[string]any, signals map[string]*ndarray.Array) *catalog.Run {
	t.Helper()
	if _, ok := start["uid"]; !ok {
		start["uid"] = "run-" + t.Name()
	}
	run := catalog.NewRun(start)
	for key, arr := range signals {
		run.SetSignal(key, arr)
	}
	run.SetStop(map[string]any{"exit_status": "success"})
	return run
}

func TestEngineNormalizes(t *testing.T) {
	run := buildRun(t, map[string]any{"num_points": 4}, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{1, 2, 3, 4}),
		"det": ndarray.FromSlice([]float64{10, 20, 30, 40}),
		"i0":  ndarray.FromSlice([]float64{10, 10, 10, 10}),
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"en"}, []string{"det"}, []string{"i0"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{1, 2, 3, 4}, series[0].Y.Data)
	assert.Equal(t, []string{"en"}, series[0].XKeys)
	assert.Equal(t, "det", series[0].YKey)
}

func TestEngineNormBroadcastAppendsTrailingDims(t *testing.T) {
	y, err := ndarray.New(floats(45, 90), 5, 3, 3)
	require.NoError(t, err)
	run := buildRun(t, map[string]any{"num_points": 5}, map[string]*ndarray.Array{
		"en":  ndarray.Arange(5),
		"img": y,
		"i0":  ndarray.FromSlice([]float64{2, 2, 2, 2, 2}),
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"en"}, []string{"img"}, []string{"i0"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	s := series[0]
	assert.Equal(t, []int{5, 3, 3}, s.Y.Shape)
	assert.Equal(t, []string{"en", "Dimension 1", "Dimension 2"}, s.XKeys)
	assert.Equal(t, 22.5, s.Y.Data[0], "norm (5,) divides blockwise, never by prepending")
	assert.Equal(t, 44.5, s.Y.Data[44])
}

func TestEngineNormProduct(t *testing.T) {
	run := buildRun(t, map[string]any{"num_points": 2}, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{0, 1}),
		"det": ndarray.FromSlice([]float64{12, 24}),
		"i0":  ndarray.FromSlice([]float64{2, 2}),
		"i1":  ndarray.FromSlice([]float64{3, 4}),
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"en"}, []string{"det"}, []string{"i0", "i1"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, series[0].Y.Data)
}

func TestEngineTransformApplied(t *testing.T) {
	run := buildRun(t, map[string]any{"num_points": 3}, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{1, 2, 3}),
		"det": ndarray.FromSlice([]float64{2, 4, 6}),
	})
	e := NewEngine(run)
	require.NoError(t, e.SetTransform("y / mean(y)"))

	series, err := e.PlotData([]string{"en"}, []string{"det"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 1.5}, series[0].Y.Data)
}

func TestEngineTransformFailureSurfaces(t *testing.T) {
	run := buildRun(t, map[string]any{"num_points": 3}, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{1, 2, 3}),
		"det": ndarray.FromSlice([]float64{2, 4, 6}),
	})
	e := NewEngine(run)

	// Parse failures reject the expression and keep the old one.
	var terr *TransformError
	require.ErrorAs(t, e.SetTransform("exp(y)"), &terr)
	assert.Equal(t, "", e.TransformText())

	// Evaluation failures surface per request, no series.
	require.NoError(t, e.SetTransform("y / x[4]"))
	series, err := e.PlotData([]string{"en"}, []string{"det"}, nil)
	assert.ErrorAs(t, err, &terr)
	assert.Nil(t, series)
}

func TestEngineSingleAdditionSwapsAxes(t *testing.T) {
	img, err := ndarray.New(floats(0, 12), 4, 3)
	require.NoError(t, err)
	run := buildRun(t, map[string]any{"num_points": 4}, map[string]*ndarray.Array{
		"mot1": ndarray.Arange(4),
		"img":  img,
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"mot1"}, []string{"img"}, nil)
	require.NoError(t, err)
	require.Len(t, series, 1)
	s := series[0]

	// The synthetic detector axis lands second-to-last and y's last two
	// axes swap, so the scanned motor stays innermost.
	require.Equal(t, []string{"Dimension 1", "mot1"}, s.XKeys)
	assert.Equal(t, []float64{0, 1, 2}, s.X[0].Data)
	assert.Equal(t, []int{3, 4}, s.Y.Shape)
	assert.Equal(t, 3.0, s.Y.Data[1], "transposed element (0,1) was (1,0)")
}

func TestEngineMultipleAdditionsAppend(t *testing.T) {
	cube, err := ndarray.New(floats(0, 18), 2, 3, 3)
	require.NoError(t, err)
	run := buildRun(t, map[string]any{"num_points": 2}, map[string]*ndarray.Array{
		"en":   ndarray.Arange(2),
		"cube": cube,
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"en"}, []string{"cube"}, nil)
	require.NoError(t, err)
	s := series[0]
	assert.Equal(t, []string{"en", "Dimension 1", "Dimension 2"}, s.XKeys)
	assert.Equal(t, []int{2, 3, 3}, s.Y.Shape, "no swap when more than one axis is added")
}

func TestEngineHintedAxisAddition(t *testing.T) {
	img, err := ndarray.New(floats(0, 12), 4, 3)
	require.NoError(t, err)
	run := buildRun(t, map[string]any{
		"num_points": 4,
		"plot_hints": map[string]any{
			"primary": []any{map[string]any{"signal": "img", "axes": []any{"energies"}}},
		},
	}, map[string]*ndarray.Array{
		"mot1":     ndarray.Arange(4),
		"img":      img,
		"energies": ndarray.FromSlice([]float64{100, 200, 300}),
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"mot1"}, []string{"img"}, nil)
	require.NoError(t, err)
	s := series[0]
	require.Equal(t, []string{"energies", "mot1"}, s.XKeys)
	assert.Equal(t, []float64{100, 200, 300}, s.X[0].Data)
	assert.Equal(t, []int{3, 4}, s.Y.Shape)
}

func TestEngineCacheStaticOnly(t *testing.T) {
	run := buildRun(t, map[string]any{"num_points": 2}, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{0, 1}),
		"det": ndarray.FromSlice([]float64{5, 6}),
	})
	e := NewEngine(run)

	series, err := e.PlotData([]string{"en"}, []string{"det"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, series[0].Y.Data)

	// A static engine keeps serving the cached arrays after mutation.
	run.SetSignal("det", ndarray.FromSlice([]float64{50, 60}))
	series, err = e.PlotData([]string{"en"}, []string{"det"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, series[0].Y.Data)

	// Toggling dynamic drops the cache and re-reads.
	e.SetDynamic(true)
	series, err = e.PlotData([]string{"en"}, []string{"det"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 60}, series[0].Y.Data)
}

func TestEngineDynamicTrimsUnevenBuffers(t *testing.T) {
	start := map[string]any{"uid": "live-run", "num_points": 10}
	run := catalog.NewRun(start)
	run.SetSignal("en", ndarray.Arange(6))
	run.SetSignal("det", ndarray.FromSlice([]float64{1, 2, 3, 4}))
	run.SetSignal("i0", ndarray.FromSlice([]float64{1, 1, 1, 1, 1}))

	e := NewEngine(run)
	require.True(t, e.Dynamic(), "a live run starts dynamic")

	series, err := e.PlotData([]string{"en"}, []string{"det"}, []string{"i0"})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, series[0].Y.Shape, "trimmed to the shortest buffer")
	assert.Equal(t, []float64{1, 2, 3, 4}, series[0].Y.Data)
	assert.True(t, e.Dynamic(), "still short of the expected points")
}

func TestEngineDynamicStopsAtExpectedPoints(t *testing.T) {
	run := catalog.NewRun(map[string]any{"uid": "live-run-2", "num_points": 3})
	run.SetSignal("en", ndarray.Arange(3))
	run.SetSignal("det", ndarray.Arange(3))

	e := NewEngine(run)
	e.SetDynamic(true)
	_, err := e.PlotData([]string{"en"}, []string{"det"}, nil)
	require.NoError(t, err)
	assert.False(t, e.Dynamic(), "all points arrived, no more re-reads needed")
}

func TestEngineDefaultCheckedFromHints(t *testing.T) {
	run := buildRun(t, map[string]any{
		"num_points": 3,
		"plot_hints": map[string]any{
			"primary":       []any{"det"},
			"normalization": []any{"i0"},
		},
		"hints": map[string]any{
			"dimensions": []any{[]any{[]any{"mot1"}, "primary"}},
		},
	}, map[string]*ndarray.Array{
		"time": ndarray.Arange(3),
		"mot1": ndarray.Arange(3),
		"det":  ndarray.FromSlice([]float64{3, 6, 9}),
		"i0":   ndarray.FromSlice([]float64{3, 3, 3}),
	})
	e := NewEngine(run)

	x, y, norm := e.Checked()
	assert.Equal(t, []string{"mot1"}, x)
	assert.Equal(t, []string{"det"}, y)
	assert.Equal(t, []string{"i0"}, norm)

	series, err := e.Plot()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{1, 2, 3}, series[0].Y.Data)
}

func floats(lo, hi int) []float64 {
	out := make([]float64, hi-lo)
	for i := range out {
		out[i] = float64(lo + i)
	}
	return out
}
