package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/table"
)

type tickMsg time.Time        // table work-queue drain cadence
type dynamicTickMsg time.Time // live replot cadence
type refreshNowMsg struct{}

// lengthMsg - background catalog length poll
type lengthMsg struct {
	ID     int64
	Source int
	Len    int
	Dur    time.Duration
	Err    error
}

// batchLoadedMsg - one drained table batch materialized off-thread
type batchLoadedMsg struct {
	ID    int64
	Batch table.Batch
	Rows  []table.Row
	Dur   time.Duration
}

// runLoadedMsg - full run load for the plot view
type runLoadedMsg struct {
	ID  int64
	UID string
	Run *catalog.Run
	Dur time.Duration
	Err error
}

// documentMsg - one document arrived on a stream source's channel.
// OK false means the channel closed and no further waits are scheduled.
type documentMsg struct {
	Source int
	Name   string
	Doc    map[string]any
	OK     bool
}

func (a *App) cmdPollLength() tea.Cmd {
	a.lenReqID++
	reqID := a.lenReqID
	a.lenInFlight = true
	src := a.srcIdx
	cat := a.sources[src].Catalog
	return func() tea.Msg {
		start := time.Now()
		n, err := cat.Len()
		return lengthMsg{ID: reqID, Source: src, Len: n, Dur: time.Since(start), Err: err}
	}
}

// cmdLoadBatch - BACKGROUND, materializes one drained batch. The next drain
// is scheduled only after this one lands, so a slow backend self-throttles.
func (a *App) cmdLoadBatch(b table.Batch) tea.Cmd {
	a.loadReqID++
	reqID := a.loadReqID
	a.loadInFlight = true
	fetcher := a.fetcher
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rows := table.LoadRanges(ctx, fetcher, b.Ranges)
		return batchLoadedMsg{ID: reqID, Batch: b, Rows: rows, Dur: time.Since(start)}
	}
}

func (a *App) cmdLoadRun(uid string) tea.Cmd {
	a.runReqID++
	reqID := a.runReqID
	a.runLoading = true
	cat := a.sources[a.srcIdx].Catalog
	return func() tea.Msg {
		start := time.Now()
		run, err := cat.GetByUID(uid)
		return runLoadedMsg{ID: reqID, UID: uid, Run: run, Dur: time.Since(start), Err: err}
	}
}

// waitForDocument bridges a stream source's channel into the update loop.
// The handler re-arms the wait after each document.
func (a *App) waitForDocument(source int) tea.Cmd {
	ch := a.sources[source].Docs
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		doc, ok := <-ch
		return documentMsg{Source: source, Name: doc.Name, Doc: doc.Doc, OK: ok}
	}
}

func (a *App) tickCmd() tea.Cmd {
	d := a.opts.RefreshEvery
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) dynamicTickCmd() tea.Cmd {
	d := a.opts.DynamicEvery
	if d <= 0 {
		d = 2 * time.Second
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return dynamicTickMsg(t) })
}
