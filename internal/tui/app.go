package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/plot"
	"github.com/xraygui/nbs-viewer-sub001/internal/table"
	"github.com/xraygui/nbs-viewer-sub001/internal/transport"
)

type viewKind int

const (
	viewCatalog viewKind = iota
	viewPlot
)

// selector columns in the plot sidebar
const (
	colX = iota
	colY
	colNorm
)

type App struct {
	opts Options

	width  int
	height int

	view viewKind

	sources []Source
	srcIdx  int

	tbl     *table.Model
	fetcher table.Fetcher
	cursor  int
	reverse bool

	engine *plot.Engine
	avg    *plot.Averager

	averaging bool

	selKeys   []string
	allKeys   []string
	hintKeys  []string
	showAll   bool
	selCursor int
	selCol    int

	transformInput   textinput.Model
	editingTransform bool

	lineRenderer string
	heatRenderer string

	plotDirty bool
	plotCache string
	plotW     int
	plotH     int

	lenReqID     int64
	loadReqID    int64
	runReqID     int64
	lenInFlight  bool
	loadInFlight bool
	runLoading   bool

	lastLenDur  time.Duration
	lastLoadDur time.Duration
	lastRunDur  time.Duration
	lastUpdate  time.Time

	err error

	showHelp bool
}

func NewApp(opts Options) *App {
	chunk := opts.ChunkSize
	if chunk < 1 {
		chunk = table.DefaultChunkSize
	}
	ti := textinput.New()
	ti.Placeholder = "y / norm"
	ti.CharLimit = 128
	a := &App{
		opts:           opts,
		view:           viewCatalog,
		sources:        opts.Sources,
		avg:            plot.NewAverager(),
		transformInput: ti,
		lineRenderer:   opts.Renderers.Lines,
		heatRenderer:   opts.Renderers.Heatmap,
		plotDirty:      true,
	}
	if len(a.sources) > 0 {
		a.fetcher = table.NewCatalogFetcher(a.sources[0].Catalog)
		a.tbl = table.NewModel(a.fetcher.Columns(), 0, chunk)
	} else {
		a.tbl = table.NewModel(catalog.Columns, 0, chunk)
	}
	return a
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.tickCmd(), a.dynamicTickCmd()}
	if len(a.sources) > 0 {
		cmds = append(cmds, a.cmdPollLength())
	}
	for i := range a.sources {
		if c := a.waitForDocument(i); c != nil {
			cmds = append(cmds, c)
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.markPlotDirty()
		return a, nil

	case tea.KeyMsg:
		if m.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.editingTransform {
			return a.updateTransformKeys(m)
		}
		if a.showHelp {
			switch m.String() {
			case "esc", "enter", "?", "h":
				a.showHelp = false
			}
			return a, nil
		}
		switch m.String() {
		case "q":
			return a, tea.Quit
		case "?", "h":
			a.showHelp = true
			return a, nil
		case "r":
			return a, func() tea.Msg { return refreshNowMsg{} }
		case "a":
			a.averaging = !a.averaging
			if !a.averaging {
				a.avg = plot.NewAverager()
			}
			a.markPlotDirty()
			return a, nil
		}
		if a.view == viewPlot {
			return a.updatePlotKeys(m)
		}
		return a.updateCatalogKeys(m)

	case tickMsg:
		var cmds []tea.Cmd
		if !a.loadInFlight {
			if b := a.tbl.Drain(); len(b.Ranges) > 0 {
				cmds = append(cmds, a.cmdLoadBatch(b))
			}
		}
		cmds = append(cmds, a.tickCmd())
		return a, tea.Batch(cmds...)

	case dynamicTickMsg:
		var cmds []tea.Cmd
		if a.engine != nil && a.engine.Dynamic() {
			a.markPlotDirty()
		}
		if len(a.sources) > 0 && !a.lenInFlight && a.sources[a.srcIdx].Stream == nil {
			cmds = append(cmds, a.cmdPollLength())
		}
		cmds = append(cmds, a.dynamicTickCmd())
		return a, tea.Batch(cmds...)

	case refreshNowMsg:
		if len(a.sources) == 0 || a.lenInFlight {
			return a, nil
		}
		return a, a.cmdPollLength()

	case lengthMsg:
		if m.ID != a.lenReqID {
			return a, nil
		}
		a.lenInFlight = false
		a.lastLenDur = m.Dur
		if m.Source != a.srcIdx {
			return a, nil
		}
		if m.Err != nil {
			a.err = m.Err
			return a, nil
		}
		a.err = nil
		a.lastUpdate = time.Now()
		if a.tbl.CanGrow(m.Len) {
			a.tbl.Grow(m.Len)
		}
		return a, nil

	case batchLoadedMsg:
		if m.ID != a.loadReqID {
			return a, nil
		}
		a.loadInFlight = false
		a.lastLoadDur = m.Dur
		a.tbl.Apply(m.Batch.Gen, m.Rows)
		a.tbl.Complete(m.Batch)
		return a, nil

	case runLoadedMsg:
		if m.ID != a.runReqID {
			return a, nil
		}
		a.runLoading = false
		a.lastRunDur = m.Dur
		if m.Err != nil {
			a.err = m.Err
			return a, nil
		}
		a.err = nil
		a.openRun(m.Run)
		return a, nil

	case documentMsg:
		return a.handleDocument(m)
	}

	return a, nil
}

func (a *App) handleDocument(m documentMsg) (tea.Model, tea.Cmd) {
	if !m.OK {
		return a, nil
	}
	src := a.sources[m.Source]
	if src.Stream != nil {
		src.Stream.HandleDocument(m.Name, m.Doc)
		if m.Source == a.srcIdx {
			if n, err := src.Catalog.Len(); err == nil {
				a.tbl.Grow(n)
			}
		}
		if a.engine != nil && a.engine.Dynamic() {
			a.markPlotDirty()
		}
		if m.Name == transport.NameStop && a.averaging {
			a.maybeAverageStopped(src, m.Doc)
		}
	}
	return a, a.waitForDocument(m.Source)
}

// maybeAverageStopped folds a just-completed repeat run into the running
// average. Non-repeat runs and lookup misses are ignored.
func (a *App) maybeAverageStopped(src Source, doc map[string]any) {
	uid, _ := doc["run_start"].(string)
	if uid == "" {
		return
	}
	run, err := src.Stream.GetByUID(uid)
	if err != nil {
		return
	}
	if _, ok := run.Repeat(); !ok {
		return
	}
	if err := a.avg.Add(run); err != nil {
		a.err = err
		return
	}
	a.markPlotDirty()
}

func (a *App) updateCatalogKeys(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < a.tbl.RowCount()-1 {
			a.cursor++
		}
	case "pgup":
		a.cursor = clamp(a.cursor-a.pageSize(), 0, max(0, a.tbl.RowCount()-1))
	case "pgdown":
		a.cursor = clamp(a.cursor+a.pageSize(), 0, max(0, a.tbl.RowCount()-1))
	case "g":
		a.cursor = 0
	case "G":
		if n := a.tbl.RowCount(); n > 0 {
			a.cursor = n - 1
		}
	case "tab":
		if len(a.sources) > 1 {
			a.switchSource((a.srcIdx + 1) % len(a.sources))
			return a, a.cmdPollLength()
		}
	case "o":
		a.reverse = !a.reverse
		a.tbl.SetReverse(a.reverse)
		a.cursor = 0
	case "enter":
		uid, err := a.tbl.Key(a.modelRow(a.cursor))
		if err != nil {
			// Row not resolved yet; the lookup queued its load.
			return a, nil
		}
		if a.runLoading {
			return a, nil
		}
		return a, a.cmdLoadRun(uid)
	}
	return a, nil
}

func (a *App) updatePlotKeys(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "esc":
		a.view = viewCatalog
		return a, nil
	case "up", "k":
		if a.selCursor > 0 {
			a.selCursor--
		}
	case "down", "j":
		if a.selCursor < len(a.selKeys)-1 {
			a.selCursor++
		}
	case "left":
		if a.selCol > colX {
			a.selCol--
		}
	case "right":
		if a.selCol < colNorm {
			a.selCol++
		}
	case " ":
		a.toggleChecked()
	case "t":
		a.editingTransform = true
		a.transformInput.SetValue(a.engine.TransformText())
		a.transformInput.Focus()
		return a, textinput.Blink
	case "d":
		a.engine.SetDynamic(!a.engine.Dynamic())
		a.markPlotDirty()
	case "v":
		a.cycleRenderer()
		a.markPlotDirty()
	case "s":
		a.showAll = !a.showAll
		a.applyKeyFilter()
	}
	return a, nil
}

// modelRow maps a display row to the underlying table row, honoring the
// reverse-ordering toggle (newest runs first).
func (a *App) modelRow(row int) int {
	if !a.reverse {
		return row
	}
	return a.tbl.RowCount() - 1 - row
}

// applyKeyFilter switches the selector between the hinted candidate keys
// and the run's full signal set.
func (a *App) applyKeyFilter() {
	if a.showAll || len(a.hintKeys) == 0 {
		a.selKeys = a.allKeys
	} else {
		a.selKeys = a.hintKeys
	}
	if a.selCursor >= len(a.selKeys) {
		a.selCursor = max(0, len(a.selKeys)-1)
	}
}

func (a *App) updateTransformKeys(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "enter":
		a.editingTransform = false
		a.transformInput.Blur()
		if err := a.engine.SetTransform(strings.TrimSpace(a.transformInput.Value())); err != nil {
			a.err = err
			return a, nil
		}
		a.err = nil
		a.markPlotDirty()
		return a, nil
	case "esc":
		a.editingTransform = false
		a.transformInput.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.transformInput, cmd = a.transformInput.Update(k)
	return a, cmd
}

// toggleChecked flips the cursor key's membership in the column the
// selector is on, then pushes the new checked sets into the engine.
func (a *App) toggleChecked() {
	if a.engine == nil || a.selCursor >= len(a.selKeys) {
		return
	}
	key := a.selKeys[a.selCursor]
	x, y, norm := a.engine.Checked()
	switch a.selCol {
	case colX:
		x = toggleKey(x, key)
	case colY:
		y = toggleKey(y, key)
	case colNorm:
		norm = toggleKey(norm, key)
	}
	a.engine.SetChecked(x, y, norm)
	a.markPlotDirty()
}

func toggleKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i:i], keys[i+1:]...)
		}
	}
	return append(keys, key)
}

func (a *App) cycleRenderer() {
	series, err := a.currentSeries()
	if err != nil {
		return
	}
	cap := seriesCapability(series)
	names := rendererNames(cap)
	if len(names) < 2 {
		return
	}
	current := a.rendererFor(cap)
	next := names[0]
	for i, n := range names {
		if n == current {
			next = names[(i+1)%len(names)]
			break
		}
	}
	a.setRendererFor(cap, next)
}

func (a *App) openRun(run *catalog.Run) {
	a.engine = plot.NewEngine(run)
	a.allKeys = run.Keys()
	a.hintKeys = hintedCandidates(a.engine)
	a.showAll = len(a.hintKeys) == 0
	a.applyKeyFilter()
	a.selCursor = 0
	a.selCol = colY
	a.view = viewPlot
	a.markPlotDirty()
	if a.averaging {
		if _, ok := run.Repeat(); ok {
			if err := a.avg.Add(run); err != nil {
				a.err = err
			}
		}
	}
}

// hintedCandidates collects the keys the axis resolver assigned a role,
// which is what the selector shows unless "show all" is on.
func hintedCandidates(e *plot.Engine) []string {
	seen := map[string]bool{}
	var keys []string
	add := func(m map[int][]string) {
		for _, list := range m {
			for _, k := range list {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	add(e.Keys().X)
	add(e.HintedY())
	sort.Strings(keys)
	return keys
}

func (a *App) switchSource(idx int) {
	a.srcIdx = idx
	a.fetcher = table.NewCatalogFetcher(a.sources[idx].Catalog)
	a.tbl.Invalidate(0)
	a.cursor = 0
}

func (a *App) markPlotDirty() { a.plotDirty = true }

func (a *App) pageSize() int {
	start, end := a.catalogVisibleRange()
	if n := end - start; n > 1 {
		return n
	}
	return 10
}

func (a *App) View() string {
	if a.width <= 0 || a.height <= 0 {
		return ""
	}

	if a.width < 60 {
		msg := lipgloss.NewStyle().Padding(1, 2).Render(
			"nbsview needs at least a width of 60 columns.",
		)
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, msg)
	}

	if a.showHelp {
		return a.viewHelp()
	}

	switch a.view {
	case viewPlot:
		return a.viewPlot()
	default:
		return a.viewCatalog()
	}
}

func (a *App) viewHelp() string {
	lines := []string{
		panelTitle.Render("nbsview keys"),
		"",
		kvKey.Render("catalog view"),
		"  ↑/↓ pgup/pgdn g/G   move",
		"  enter               open run",
		"  tab                 next catalog",
		"  o                   reverse ordering",
		"  r                   refresh length",
		"",
		kvKey.Render("plot view"),
		"  ←/→                 x / y / norm column",
		"  ↑/↓                 move in key list",
		"  space               toggle checked",
		"  s                   show all signals",
		"  t                   edit transform",
		"  d                   toggle dynamic updates",
		"  v                   cycle renderer",
		"  a                   toggle repeat averaging",
		"  esc                 back to catalog",
		"",
		kvKey.Render("global"),
		"  ?/h  help    q/ctrl+c  quit",
	}
	body := panelBorder.Padding(1, 2).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, body)
}

func (a *App) statusLine() string {
	var parts []string
	now := time.Now()
	view := "catalog"
	if a.view == viewPlot {
		view = "plot"
	}
	parts = append(parts, fmt.Sprintf("view=%s", view))
	if len(a.sources) > 0 {
		parts = append(parts, fmt.Sprintf("catalog=%s", a.sources[a.srcIdx].Name))
	}
	if !a.lastUpdate.IsZero() {
		parts = append(parts, "updated "+fmtAgo(now.Sub(a.lastUpdate))+" ago")
	}
	if a.loadInFlight {
		parts = append(parts, "loading…")
	}
	if a.runLoading {
		parts = append(parts, "opening…")
	}
	if a.averaging {
		parts = append(parts, fmt.Sprintf("avg %d/%d", a.avg.Count(), a.avg.Size()))
	}
	if a.err != nil {
		var terr *plot.TransformError
		msg := a.err.Error()
		if errors.As(a.err, &terr) {
			msg = "transform: " + terr.Msg
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("err: "+msg))
	}
	parts = append(parts, "?:help q:quit")
	if a.opts.Debug {
		lay := computeLayout(a.width, a.height)
		parts = append(parts, fmt.Sprintf("[%dx%d L:%d M:%d R:%d]", a.width, a.height, lay.leftW, lay.mainW, lay.rightW))
		parts = append(parts, "t_len="+fmtDur(a.lastLenDur))
		parts = append(parts, "t_load="+fmtDur(a.lastLoadDur))
		parts = append(parts, "t_run="+fmtDur(a.lastRunDur))
	}
	s := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(strings.Join(parts, "  "))
	return lipgloss.NewStyle().Width(a.width).Height(statusH).Padding(0, 1).Background(lipgloss.Color("236")).Render(s)
}

func fmtAgo(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func fmtDur(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
