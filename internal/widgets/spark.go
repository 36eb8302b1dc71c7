package widgets

import (
	"math"
	"strings"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Spark renders values as a fixed-width sparkline preview. Each cell shows
// the mean of the samples that map to it, so a long detector trace
// downsamples without aliasing spikes away. Cells whose samples are all
// non-finite render as gaps.
func Spark(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat(" ", width)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return strings.Repeat(" ", width)
	}

	cells := make([]rune, width)
	for i := range cells {
		m, ok := bucketMean(values, i, width)
		switch {
		case !ok:
			cells[i] = ' '
		case hi == lo:
			cells[i] = sparkLevels[len(sparkLevels)/2]
		default:
			lvl := int(math.Round((m - lo) / (hi - lo) * float64(len(sparkLevels)-1)))
			if lvl < 0 {
				lvl = 0
			}
			if lvl > len(sparkLevels)-1 {
				lvl = len(sparkLevels) - 1
			}
			cells[i] = sparkLevels[lvl]
		}
	}
	return string(cells)
}

// bucketMean averages the finite samples of cell i out of width. Short
// inputs stretch, with each sample repeated across adjacent cells.
func bucketMean(values []float64, i, width int) (float64, bool) {
	start := i * len(values) / width
	end := (i + 1) * len(values) / width
	if end <= start {
		end = start + 1
	}
	sum, n := 0.0, 0
	for _, v := range values[start:end] {
		if finite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
