package widgets

import (
	"fmt"
	"math"
	"sort"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/canvas/graph"
	"github.com/NimbleMarkets/ntcharts/linechart"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultMaxX = 20
	defaultMaxY = 1
)

// seriesPalette cycles line colors across series.
var seriesPalette = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("86")),  // cyan
	lipgloss.NewStyle().Foreground(lipgloss.Color("212")), // pink
	lipgloss.NewStyle().Foreground(lipgloss.Color("155")), // green
	lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
	lipgloss.NewStyle().Foreground(lipgloss.Color("111")), // blue
}

// SeriesStyle returns the palette style used for the i-th series, so
// legends can match line colors.
func SeriesStyle(i int) lipgloss.Style {
	if i < 0 {
		i = 0
	}
	return seriesPalette[i%len(seriesPalette)]
}

type lineSeries struct {
	label  string
	xs, ys []float64
}

// LineChart renders one or more labeled series against a shared x axis
// using braille patterns for high resolution. Series are replaced
// wholesale on every plot update; points are sorted by x before drawing
// so bidirectional scans render as a single curve.
type LineChart struct {
	linechart.Model

	series     []lineSeries
	xMin, xMax float64
	yMin, yMax float64

	title string
	dirty bool
}

// NewLineChart creates an empty chart with the given dimensions.
func NewLineChart(title string, width, height int) *LineChart {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c := &LineChart{
		Model: linechart.New(width, height, 0, defaultMaxX, 0, defaultMaxY,
			linechart.WithXYSteps(4, 4),
			linechart.WithYLabelFormatter(formatYLabel),
		),
		xMin:  math.Inf(1),
		xMax:  math.Inf(-1),
		yMin:  math.Inf(1),
		yMax:  math.Inf(-1),
		title: title,
		dirty: true,
	}
	c.AxisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	c.LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return c
}

// ClearSeries drops all series.
func (c *LineChart) ClearSeries() {
	c.series = c.series[:0]
	c.xMin, c.xMax = math.Inf(1), math.Inf(-1)
	c.yMin, c.yMax = math.Inf(1), math.Inf(-1)
	c.dirty = true
}

// AddSeries appends a labeled series. xs and ys must have equal length;
// mismatched input is dropped.
func (c *LineChart) AddSeries(label string, xs, ys []float64) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return
	}
	type pt struct{ x, y float64 }
	pts := make([]pt, len(xs))
	for i := range xs {
		pts[i] = pt{xs[i], ys[i]}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	s := lineSeries{label: label, xs: make([]float64, len(pts)), ys: make([]float64, len(pts))}
	for i, p := range pts {
		s.xs[i] = p.x
		s.ys[i] = p.y
		if isFinite(p.x) {
			if p.x < c.xMin {
				c.xMin = p.x
			}
			if p.x > c.xMax {
				c.xMax = p.x
			}
		}
		if isFinite(p.y) {
			if p.y < c.yMin {
				c.yMin = p.y
			}
			if p.y > c.yMax {
				c.yMax = p.y
			}
		}
	}
	c.series = append(c.series, s)
	c.updateRanges()
	c.dirty = true
}

// Labels returns the series labels in draw order with their palette index.
func (c *LineChart) Labels() []string {
	out := make([]string, len(c.series))
	for i, s := range c.series {
		out[i] = s.label
	}
	return out
}

// Resize changes the chart dimensions.
func (c *LineChart) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if c.Width() == width && c.Height() == height {
		return
	}
	c.Model.Resize(width, height)
	c.dirty = true
	c.updateRanges()
}

// Title returns the chart title.
func (c *LineChart) Title() string { return c.title }

// updateRanges recalculates axis ranges based on data bounds.
func (c *LineChart) updateRanges() {
	if len(c.series) == 0 {
		return
	}

	valueRange := c.yMax - c.yMin
	padding := valueRange * 0.1
	if padding < 1e-6 {
		padding = 0.1
	}
	newYMin := c.yMin - padding
	newYMax := c.yMax + padding
	if c.yMin >= 0 && newYMin < 0 {
		newYMin = 0
	}

	xMin, xMax := c.xMin, c.xMax
	if !isFinite(xMin) {
		xMin = 0
	}
	if !isFinite(xMax) || xMax <= xMin {
		xMax = xMin + defaultMaxX
	}

	c.SetYRange(newYMin, newYMax)
	c.SetViewYRange(newYMin, newYMax)
	c.SetXRange(xMin, xMax)
	c.SetViewXRange(xMin, xMax)
	c.SetXYRange(xMin, xMax, newYMin, newYMax)
}

// Draw renders every series to the internal canvas.
func (c *LineChart) Draw() {
	c.Clear()
	c.DrawXYAxisAndLabel()

	if c.GraphWidth() <= 0 || c.GraphHeight() <= 0 || len(c.series) == 0 {
		c.dirty = false
		return
	}

	xRange := c.ViewMaxX() - c.ViewMinX()
	yRange := c.ViewMaxY() - c.ViewMinY()
	if xRange <= 0 {
		xRange = 1
	}
	if yRange <= 0 {
		yRange = 1
	}
	xScale := float64(c.GraphWidth()) / xRange
	yScale := float64(c.GraphHeight()) / yRange

	startX := 0
	if c.YStep() > 0 {
		startX = c.Origin().X + 1
	}

	for si, s := range c.series {
		lb := sort.Search(len(s.xs), func(i int) bool { return s.xs[i] >= c.ViewMinX() })
		ub := sort.Search(len(s.xs), func(i int) bool { return s.xs[i] > c.ViewMaxX() })
		if ub-lb <= 0 {
			continue
		}

		bGrid := graph.NewBrailleGrid(
			c.GraphWidth(), c.GraphHeight(),
			0, float64(c.GraphWidth()),
			0, float64(c.GraphHeight()),
		)

		points := make([]canvas.Float64Point, 0, ub-lb)
		for i := lb; i < ub; i++ {
			x := (s.xs[i] - c.ViewMinX()) * xScale
			y := (s.ys[i] - c.ViewMinY()) * yScale
			if x >= 0 && x <= float64(c.GraphWidth()) && y >= 0 && y <= float64(c.GraphHeight()) {
				points = append(points, canvas.Float64Point{X: x, Y: y})
			}
		}

		if len(points) == 1 {
			bGrid.Set(bGrid.GridPoint(points[0]))
		} else {
			for i := 0; i < len(points)-1; i++ {
				bresenhamLine(bGrid, bGrid.GridPoint(points[i]), bGrid.GridPoint(points[i+1]))
			}
		}

		style := seriesPalette[si%len(seriesPalette)]
		patterns := bGrid.BraillePatterns()
		graph.DrawBraillePatterns(&c.Canvas, canvas.Point{X: startX, Y: 0}, patterns, style)
	}

	c.dirty = false
}

// View returns the rendered chart as a string.
func (c *LineChart) View() string {
	if c.dirty {
		c.Draw()
	}
	return c.Model.View()
}

// bresenhamLine draws a line using Bresenham's algorithm.
func bresenhamLine(bGrid *graph.BrailleGrid, p1, p2 canvas.Point) {
	dx := absInt(p2.X - p1.X)
	dy := absInt(p2.Y - p1.Y)

	sx := 1
	if p1.X > p2.X {
		sx = -1
	}
	sy := 1
	if p1.Y > p2.Y {
		sy = -1
	}

	err := dx - dy
	x, y := p1.X, p1.Y

	for {
		bGrid.Set(canvas.Point{X: x, Y: y})
		if x == p2.X && y == p2.Y {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// formatYLabel formats Y-axis labels with appropriate precision.
func formatYLabel(step int, v float64) string {
	absV := math.Abs(v)
	switch {
	case absV == 0:
		return "0"
	case absV >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case absV >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	case absV >= 1:
		return fmt.Sprintf("%.1f", v)
	case absV >= 0.01:
		return fmt.Sprintf("%.2f", v)
	case absV >= 0.001:
		return fmt.Sprintf("%.3f", v)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}
