package widgets

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// heatRamp maps normalized intensity to a 256-color thermal ramp.
var heatRamp = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("17")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("19")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("26")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("37")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("118")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// Heatmap renders a 2-D intensity grid with block characters, one cell
// per terminal column. Rows render top to bottom as the grid's first
// axis; the grid is resampled to fit the widget box.
type Heatmap struct {
	grid   [][]float64
	width  int
	height int
	title  string

	rendered string
	dirty    bool
}

// NewHeatmap creates an empty heatmap with the given dimensions.
func NewHeatmap(title string, width, height int) *Heatmap {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Heatmap{title: title, width: width, height: height, dirty: true}
}

// SetGrid replaces the data. Rows may be ragged; short rows pad with NaN.
func (h *Heatmap) SetGrid(grid [][]float64) {
	h.grid = grid
	h.dirty = true
}

// Resize changes the widget dimensions.
func (h *Heatmap) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == h.width && height == h.height {
		return
	}
	h.width = width
	h.height = height
	h.dirty = true
}

// Title returns the heatmap title.
func (h *Heatmap) Title() string { return h.title }

// View returns the rendered grid.
func (h *Heatmap) View() string {
	if h.dirty {
		h.draw()
	}
	return h.rendered
}

func (h *Heatmap) draw() {
	h.dirty = false
	if len(h.grid) == 0 {
		h.rendered = strings.TrimRight(strings.Repeat(strings.Repeat(" ", h.width)+"\n", h.height), "\n")
		return
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	cols := 0
	for _, row := range h.grid {
		if len(row) > cols {
			cols = len(row)
		}
		for _, v := range row {
			if !isFinite(v) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if cols == 0 || !isFinite(lo) {
		h.rendered = ""
		return
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var b strings.Builder
	for y := 0; y < h.height; y++ {
		ry := (y * len(h.grid)) / h.height
		row := h.grid[ry]
		for x := 0; x < h.width; x++ {
			rx := (x * cols) / h.width
			if rx >= len(row) || !isFinite(row[rx]) {
				b.WriteByte(' ')
				continue
			}
			n := (row[rx] - lo) / span
			level := int(n * float64(len(heatRamp)-1))
			if level < 0 {
				level = 0
			}
			if level >= len(heatRamp) {
				level = len(heatRamp) - 1
			}
			b.WriteString(heatRamp[level].Render("█"))
		}
		if y < h.height-1 {
			b.WriteByte('\n')
		}
	}
	h.rendered = b.String()
}
