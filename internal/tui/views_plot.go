package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
	"github.com/xraygui/nbs-viewer-sub001/internal/plot"
	"github.com/xraygui/nbs-viewer-sub001/internal/registry"
	"github.com/xraygui/nbs-viewer-sub001/internal/widgets"
)

func (a *App) viewPlot() string {
	if a.engine == nil {
		return a.viewCatalog()
	}
	lay := computeLayout(a.width, a.height)

	left := a.renderSelector(lay.leftW, lay.h)
	main := a.renderPlotMain(lay.mainW, lay.h)
	right := a.renderRunInfo(lay.rightW, lay.h)

	content := lipgloss.JoinHorizontal(lipgloss.Top, left, main, right)
	full := lipgloss.JoinVertical(lipgloss.Left, content, a.statusLine())
	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Top, full)
}

// currentSeries resolves what the plot view shows: the running repeat
// average when one is being accumulated, otherwise the engine's pipeline
// output for the opened run.
func (a *App) currentSeries() ([]plot.Series, error) {
	if a.averaging && a.avg.Count() > 0 {
		return a.avg.Series()
	}
	if a.engine == nil {
		return nil, nil
	}
	return a.engine.Plot()
}

func seriesCapability(series []plot.Series) registry.Capability {
	for _, s := range series {
		if s.Y != nil && s.Y.Rank() >= 2 {
			return registry.CapHeatmap
		}
	}
	return registry.CapLines
}

func rendererNames(cap registry.Capability) []string {
	return registry.For(cap)
}

func (a *App) rendererFor(cap registry.Capability) string {
	if cap == registry.CapHeatmap {
		return a.heatRenderer
	}
	return a.lineRenderer
}

func (a *App) setRendererFor(cap registry.Capability, name string) {
	if cap == registry.CapHeatmap {
		a.heatRenderer = name
	} else {
		a.lineRenderer = name
	}
}

func (a *App) newRenderer(cap registry.Capability, w, h int) registry.Renderer {
	name := a.rendererFor(cap)
	entry, ok := registry.Lookup(name)
	if !ok {
		names := registry.For(cap)
		if len(names) == 0 {
			return nil
		}
		entry, _ = registry.Lookup(names[0])
	}
	return entry.New(w, h)
}

func (a *App) renderPlotMain(w, h int) string {
	if !a.plotDirty && w == a.plotW && h == a.plotH && a.plotCache != "" {
		return a.plotCache
	}
	a.plotCache = a.buildPlotMain(w, h)
	a.plotDirty = false
	a.plotW, a.plotH = w, h
	return a.plotCache
}

func (a *App) buildPlotMain(w, h int) string {
	card := panelBorder.Width(w-2).Height(h-2).Padding(0, 1)
	innerW := max(1, w-6)
	innerH := max(1, h-4)

	series, err := a.currentSeries()
	if err != nil {
		return card.Render(panelTitle.Render("Plot") + "\n" + errStyleRender(err))
	}
	if len(series) == 0 {
		return card.Render(panelTitle.Render("Plot") + "\n" + dim.Render("nothing checked"))
	}

	title := panelTitle.Render("Plot: " + a.plotTitle(series))
	if a.averaging && a.avg.Count() > 0 {
		title += dim.Render(fmt.Sprintf("  avg %d/%d", a.avg.Count(), a.avg.Size()))
	}

	cap := seriesCapability(series)
	r := a.newRenderer(cap, innerW, innerH-1)
	if r == nil {
		return card.Render(title + "\n" + dim.Render("no renderer registered"))
	}

	var body string
	switch chart := r.(type) {
	case *widgets.LineChart:
		for _, s := range series {
			xs, ys := lineData(s)
			if len(ys) == 0 {
				continue
			}
			chart.AddSeries(s.Label, xs, ys)
		}
		body = chart.View() + "\n" + legendLine(series, innerW)
	case *widgets.Heatmap:
		grid, label := heatGrid(series)
		if grid == nil {
			body = dim.Render("no 2-D series to draw")
		} else {
			chart.SetGrid(grid)
			body = chart.View() + "\n" + dim.Render(padTruncate(label, innerW))
		}
	default:
		body = r.View()
	}

	return card.Render(title + "\n" + body)
}

func (a *App) plotTitle(series []plot.Series) string {
	keys := make([]string, 0, len(series))
	for _, s := range series {
		keys = append(keys, s.YKey)
	}
	return strings.Join(keys, ", ")
}

// lineData flattens a 1-D series for the line renderer. The innermost x
// axis is the plot abscissa; higher x axes only matter for grids.
func lineData(s plot.Series) (xs, ys []float64) {
	if s.Y == nil || s.Y.Rank() != 1 {
		return nil, nil
	}
	ys = s.Y.Data
	if len(s.X) > 0 {
		last := s.X[len(s.X)-1]
		if last != nil && last.Rank() == 1 {
			xs = last.Data
		}
	}
	if xs == nil {
		xs = make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
	}
	if len(xs) != len(ys) {
		n := min(len(xs), len(ys))
		xs, ys = xs[:n], ys[:n]
	}
	return xs, ys
}

// heatGrid picks the first 2-D series and lays its rows out as a grid.
func heatGrid(series []plot.Series) ([][]float64, string) {
	for _, s := range series {
		if s.Y == nil || s.Y.Rank() != 2 {
			continue
		}
		rows, cols := s.Y.Shape[0], s.Y.Shape[1]
		if rows <= 0 || cols <= 0 {
			continue
		}
		grid := make([][]float64, rows)
		for i := 0; i < rows; i++ {
			grid[i] = s.Y.Data[i*cols : (i+1)*cols]
		}
		return grid, s.Label
	}
	return nil, ""
}

func legendLine(series []plot.Series, w int) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		sty := widgets.SeriesStyle(i)
		parts = append(parts, sty.Render("– "+s.Label))
	}
	return padTruncate(strings.Join(parts, "  "), w)
}

func (a *App) renderSelector(w, h int) string {
	if w <= 0 {
		return ""
	}
	card := panelBorder.Width(w-2).Height(h-2).Padding(0, 1)
	innerW := max(1, w-6)

	cols := []string{"x", "y", "n"}
	head := make([]string, len(cols))
	for i, c := range cols {
		if i == a.selCol {
			head[i] = rowSelected.Render(c)
		} else {
			head[i] = kvKey.Render(c)
		}
	}
	lines := []string{
		panelTitle.Render("Signals"),
		strings.Join(head, " ") + dim.Render("  space:toggle s:all"),
	}

	x, y, norm := a.engine.Checked()
	maxRows := max(1, h-6)
	start := 0
	if a.selCursor >= maxRows {
		start = a.selCursor - maxRows + 1
	}
	end := min(len(a.selKeys), start+maxRows)
	for i := start; i < end; i++ {
		key := a.selKeys[i]
		marks := fmt.Sprintf("%s %s %s",
			checkMark(x, key), checkMark(y, key), checkMark(norm, key))
		line := marks + " " + padTruncate(key, innerW-6)
		if i == a.selCursor {
			line = rowSelected.Render(line)
		} else {
			line = kvVal.Render(line)
		}
		lines = append(lines, line)
	}
	if len(a.selKeys) == 0 {
		lines = append(lines, dim.Render("no signals"))
	}
	return card.Render(strings.Join(lines, "\n"))
}

func checkMark(keys []string, key string) string {
	for _, k := range keys {
		if k == key {
			return "■"
		}
	}
	return "·"
}

func (a *App) renderRunInfo(w, h int) string {
	if w <= 0 {
		return ""
	}
	card := panelBorder.Width(w-2).Height(h-2).Padding(0, 1)
	innerW := max(1, w-6)
	run := a.engine.Run()

	kv := func(k, v string) string {
		return kvKey.Render(padTruncate(k, 9)) + kvVal.Render(padTruncate(v, innerW-9))
	}

	lines := []string{
		panelTitle.Render("Run"),
		kv("scan", fmt.Sprintf("%d", run.ScanID())),
		kv("uid", run.UID()),
		kv("points", fmt.Sprintf("%d", run.NumPoints())),
	}

	expected := 0
	if shape := run.TargetShape(); len(shape) > 0 {
		expected = 1
		for _, d := range shape {
			expected *= d
		}
	}
	lines = append(lines, widgets.Progress("acq", run.BufferedPoints(), expected, innerW))
	if run.Live() {
		lines = append(lines, kv("status", "acquiring"))
	} else {
		lines = append(lines, kv("status", "complete"))
	}
	if rep, ok := run.Repeat(); ok {
		lines = append(lines, kv("repeat", fmt.Sprintf("%d of %d", rep.Index+1, rep.Len)))
	}

	dyn := "off"
	if a.engine.Dynamic() {
		dyn = "on"
	}
	lines = append(lines, kv("dynamic", dyn+"  (d)"))

	lines = append(lines, "", kvKey.Render("transform (t)"))
	if a.editingTransform {
		lines = append(lines, a.transformInput.View())
	} else if txt := a.engine.TransformText(); txt != "" {
		lines = append(lines, kvVal.Render(padTruncate(txt, innerW)))
	} else {
		lines = append(lines, dim.Render("none"))
	}

	if series, err := a.currentSeries(); err == nil && len(series) > 0 {
		if y := series[0].Y; y != nil && y.Size() > 0 {
			lines = append(lines, "", kvKey.Render("preview"))
			lines = append(lines, widgets.Spark(previewValues(y), innerW))
		}
	}

	return card.Render(strings.Join(lines, "\n"))
}

// previewValues flattens the leading face of an array for the sparkline.
func previewValues(y *ndarray.Array) []float64 {
	if y.Rank() <= 1 {
		return y.Data
	}
	if y.Shape[0] == 0 {
		return nil
	}
	inner := y.Size() / y.Shape[0]
	if inner <= 0 {
		return nil
	}
	return y.Data[:inner]
}

func errStyleRender(err error) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(err.Error())
}
