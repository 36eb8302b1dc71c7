package plot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

func repeatRun(t *testing.T, index, size int, signals map[string]*ndarray.Array, hints map[string]any) *catalog.Run {
	t.Helper()
	return buildRun(t, map[string]any{
		"uid":        fmt.Sprintf("rep-%s-%d", t.Name(), index),
		"repeat":     map[string]any{"index": index, "len": size},
		"plot_hints": hints,
	}, signals)
}

func TestAveragerMeansRepeatGroup(t *testing.T) {
	hints := map[string]any{
		"x":             []any{"en"},
		"y":             []any{"det"},
		"normalization": []any{"i0"},
	}
	ys := [][]float64{{2, 4}, {4, 8}, {6, 12}}

	a := NewAverager()
	for i, y := range ys {
		// Constant norm has mean 1 after rescaling, so y passes through.
		run := repeatRun(t, i, 3, map[string]*ndarray.Array{
			"en":  ndarray.FromSlice([]float64{100, 200}),
			"det": ndarray.FromSlice(y),
			"i0":  ndarray.FromSlice([]float64{float64(i + 1), float64(i + 1)}),
		}, hints)
		require.NoError(t, a.Add(run))
	}

	assert.True(t, a.Complete())
	assert.Equal(t, 3, a.Count())

	series, err := a.Series()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{4, 8}, series[0].Y.Data)
	assert.Equal(t, []string{"en"}, series[0].XKeys)
	assert.Equal(t, []float64{100, 200}, series[0].X[0].Data)
}

func TestAveragerNormScaling(t *testing.T) {
	hints := map[string]any{
		"x":             []any{"en"},
		"y":             []any{"det"},
		"normalization": []any{"i0"},
	}
	a := NewAverager()
	// Norm [1, 3] has mean 2, so the scaled norm is [0.5, 1.5].
	run := repeatRun(t, 0, 1, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{0, 1}),
		"det": ndarray.FromSlice([]float64{1, 3}),
		"i0":  ndarray.FromSlice([]float64{1, 3}),
	}, hints)
	require.NoError(t, a.Add(run))

	series, err := a.Series()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, series[0].Y.Data)
	assert.True(t, a.Complete())
}

func TestAveragerResetsAtIndexZero(t *testing.T) {
	hints := map[string]any{"x": []any{"en"}, "y": []any{"det"}}
	a := NewAverager()

	for i := 0; i < 2; i++ {
		run := repeatRun(t, i, 2, map[string]*ndarray.Array{
			"en":  ndarray.FromSlice([]float64{0, 1}),
			"det": ndarray.FromSlice([]float64{10, 10}),
		}, hints)
		require.NoError(t, a.Add(run))
	}
	assert.True(t, a.Complete())

	// A fresh index-0 run starts a new group.
	run := repeatRun(t, 0, 2, map[string]*ndarray.Array{
		"en":  ndarray.FromSlice([]float64{0, 1}),
		"det": ndarray.FromSlice([]float64{2, 4}),
	}, hints)
	require.NoError(t, a.Add(run))
	assert.False(t, a.Complete())
	assert.Equal(t, 1, a.Count())

	series, err := a.Series()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, series[0].Y.Data)
}

func TestAveragerXFallsBackToMotorsThenTime(t *testing.T) {
	// No x hint: the scanned motor from start metadata takes the role.
	a := NewAverager()
	run := buildRun(t, map[string]any{
		"uid":        "rep-motors-0",
		"repeat":     map[string]any{"index": 0, "len": 1},
		"motors":     []any{"mot"},
		"plot_hints": map[string]any{"y": []any{"det"}},
	}, map[string]*ndarray.Array{
		"mot": ndarray.FromSlice([]float64{0, 1}),
		"det": ndarray.FromSlice([]float64{5, 7}),
	})
	require.NoError(t, a.Add(run))

	series, err := a.Series()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []string{"mot"}, series[0].XKeys)
	assert.Equal(t, []float64{0, 1}, series[0].X[0].Data)

	// No motors either: time carries the abscissa.
	a = NewAverager()
	run = buildRun(t, map[string]any{
		"uid":        "rep-time-0",
		"repeat":     map[string]any{"index": 0, "len": 1},
		"plot_hints": map[string]any{"y": []any{"det"}},
	}, map[string]*ndarray.Array{
		"time": ndarray.FromSlice([]float64{10, 20}),
		"det":  ndarray.FromSlice([]float64{5, 7}),
	})
	require.NoError(t, a.Add(run))

	series, err = a.Series()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []string{"time"}, series[0].XKeys)
}

func TestAveragerRejectsNonRepeatRun(t *testing.T) {
	a := NewAverager()
	run := buildRun(t, map[string]any{}, map[string]*ndarray.Array{
		"en": ndarray.FromSlice([]float64{0, 1}),
	})
	assert.Error(t, a.Add(run))
}

func TestAveragerImages(t *testing.T) {
	hints := map[string]any{
		"x":       []any{"en"},
		"image":   []any{"mca"},
		"image_y": []any{"mca_en"},
	}
	mca1, err := ndarray.New([]float64{0, 2, 4, 6, 8, 10}, 2, 3)
	require.NoError(t, err)
	mca2, err := ndarray.New([]float64{2, 4, 6, 8, 10, 12}, 2, 3)
	require.NoError(t, err)

	a := NewAverager()
	for i, mca := range []*ndarray.Array{mca1, mca2} {
		run := repeatRun(t, i, 2, map[string]*ndarray.Array{
			"en":     ndarray.FromSlice([]float64{0, 1}),
			"mca":    mca,
			"mca_en": ndarray.FromSlice([]float64{500, 510, 520}),
		}, hints)
		require.NoError(t, a.Add(run))
	}

	series, err := a.Series()
	require.NoError(t, err)
	require.Len(t, series, 1)
	s := series[0]
	assert.Equal(t, []int{2, 3}, s.Y.Shape)
	assert.Equal(t, []float64{1, 3, 5, 7, 9, 11}, s.Y.Data)
	require.Len(t, s.X, 2)
	assert.Equal(t, []float64{500, 510, 520}, s.X[1].Data)
}
