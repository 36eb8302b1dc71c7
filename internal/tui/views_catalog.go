package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xraygui/nbs-viewer-sub001/internal/table"
)

var (
	panelBorder = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	panelTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	kvKey       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	kvVal       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dim         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	rowSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("238"))
	rowPending  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// relative column weights for the run table; resolved against the
// terminal width each render
var columnWeights = []int{8, 26, 20, 18, 18, 8}

func (a *App) catalogVisibleRange() (start, end int) {
	w, h := a.width, a.height
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	contentH := h - statusH
	if contentH < 0 {
		contentH = 0
	}
	linesBeforeRows := 4 // title, hint, header, showing
	maxRows := contentH - linesBeforeRows - 1
	if maxRows < 1 {
		maxRows = 1
	}
	start = 0
	if a.cursor >= maxRows {
		start = a.cursor - maxRows + 1
	}
	end = min(a.tbl.RowCount(), start+maxRows)
	return start, end
}

func (a *App) viewCatalog() string {
	src := a.sources
	name, kind := "(none)", ""
	if len(src) > 0 {
		name = src[a.srcIdx].Name
		kind = string(src[a.srcIdx].Catalog.Kind())
	}

	title := panelTitle.Render(fmt.Sprintf("Runs: %s", name))
	if kind != "" {
		title += dim.Render("  [" + kind + "]")
	}
	hint := dim.Render("↑/↓ move  enter:open  tab:catalog  o:order  a:avg  r:refresh  ?:help")

	widths := a.columnWidths()
	header := a.renderRow(a.tbl.Columns(), widths, kvKey)

	start, end := a.catalogVisibleRange()
	lines := []string{title, hint, header}
	for row := start; row < end; row++ {
		cells := make([]string, a.tbl.ColumnCount())
		pending := false
		for col := range cells {
			cells[col] = a.tbl.Cell(a.modelRow(row), col)
			if cells[col] == table.Placeholder {
				pending = true
			}
		}
		style := kvVal
		if pending {
			style = rowPending
		}
		if row == a.cursor {
			style = rowSelected
		}
		lines = append(lines, a.renderRow(cells, widths, style))
	}
	if a.tbl.RowCount() == 0 {
		lines = append(lines, dim.Render("  no runs yet"))
	}

	showing := dim.Render(fmt.Sprintf("showing %d-%d of %d  (%d resolved)",
		start+1, end, a.tbl.RowCount(), a.tbl.ResolvedCount()))
	lines = append(lines, showing)

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	full := lipgloss.JoinVertical(lipgloss.Left, body, a.statusLine())
	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Top, full)
}

func (a *App) columnWidths() []int {
	n := a.tbl.ColumnCount()
	widths := make([]int, n)
	total := 0
	for i := 0; i < n; i++ {
		w := 10
		if i < len(columnWeights) {
			w = columnWeights[i]
		}
		widths[i] = w
		total += w
	}
	// Scale to the terminal, keeping a column readable at minimum.
	avail := a.width - 2 - n
	if total <= 0 || avail <= 0 {
		return widths
	}
	for i := range widths {
		widths[i] = max(4, widths[i]*avail/total)
	}
	return widths
}

func (a *App) renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		w := 10
		if i < len(widths) {
			w = widths[i]
		}
		parts[i] = padTruncate(c, w)
	}
	return " " + style.Render(strings.Join(parts, " "))
}

func padTruncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > w {
		if w <= 1 {
			return string(r[:w])
		}
		return string(r[:w-1]) + "…"
	}
	return s + strings.Repeat(" ", w-len(r))
}
