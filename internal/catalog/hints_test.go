package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlotHints(t *testing.T) {
	hints := ParsePlotHints(map[string]any{
		"primary": []any{
			"det",
			map[string]any{"signal": "tes", "axes": []any{"tes_energies"}},
		},
		"normalization": []any{"i0"},
		"image": []any{
			map[string]any{"signal": []any{"primary", "mca_spectrum"}},
		},
		"bogus": "not-a-list",
	})

	assert.Equal(t, []string{"det", "tes"}, hints.Fields("primary"))
	assert.Equal(t, []string{"i0"}, hints.Fields("normalization"))
	assert.Equal(t, []string{"mca_spectrum"}, hints.Fields("image"))
	assert.Empty(t, hints.Fields("bogus"))

	ax := hints.AxisHints()
	assert.Equal(t, []string{"tes_energies"}, ax["tes"])
	_, ok := ax["det"]
	assert.False(t, ok)
}

func TestParsePlotHintsNotAMap(t *testing.T) {
	assert.Empty(t, ParsePlotHints(nil))
	assert.Empty(t, ParsePlotHints([]any{"x"}))
}

func TestFlatten(t *testing.T) {
	hints := ParsePlotHints(map[string]any{
		"primary": []any{"a", "b"},
		"norm":    []any{map[string]any{"signal": "c"}},
	})
	flat := hints.Flatten()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, flat)
}
