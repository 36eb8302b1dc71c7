// Package table implements a virtualized table model over a large,
// append-only catalog. Cells resolve lazily: reading an unloaded cell
// returns a placeholder and queues a chunked fetch window; a driver drains
// the queue into a background batch and applies the results when they land.
package table

import "errors"

// Placeholder is returned for cells whose row has not been fetched yet.
const Placeholder = "…"

// ErrUnresolved is returned by Key for rows whose stable key has not been
// loaded yet. The lookup itself queues the load.
var ErrUnresolved = errors.New("table: row not resolved yet")

// DefaultChunkSize is the fetch window used to amortize backend
// round-trips. A chunk size of 1 selects direct per-row fetches.
const DefaultChunkSize = 50

// Batch is the atomically drained work of one dispatch cycle. Gen ties the
// eventual results back to the model generation that produced them; results
// from an older generation are dropped on arrival.
type Batch struct {
	Gen    int64
	Ranges []Range
}

// Model is the virtual table. It is confined to the consumer thread; only
// the pure LoadRanges batch runs elsewhere.
type Model struct {
	columns   []string
	length    int
	chunkSize int
	reverse   bool

	cells map[int][]string
	keys  map[int]string

	queue   []Range
	pending []Range

	gen      int64
	resolved int
}

// NewModel builds a model over a catalog of the given length.
func NewModel(columns []string, length, chunkSize int) *Model {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if length < 0 {
		length = 0
	}
	return &Model{
		columns:   columns,
		length:    length,
		chunkSize: chunkSize,
		cells:     map[int][]string{},
		keys:      map[int]string{},
	}
}

// RowCount returns the visible row count.
func (m *Model) RowCount() int { return m.length }

// ColumnCount returns the number of display columns.
func (m *Model) ColumnCount() int { return len(m.columns) }

// Columns returns the display column headers.
func (m *Model) Columns() []string { return m.columns }

// Generation returns the current model generation. A reset bumps it so
// results from earlier dispatches are ignored.
func (m *Model) Generation() int64 { return m.gen }

// ResolvedCount returns the number of rows with materialized cells.
func (m *Model) ResolvedCount() int { return m.resolved }

// SetReverse marks the table as being scanned bottom-up, which flips the
// fetch window to extend backwards from the requested row.
func (m *Model) SetReverse(reverse bool) { m.reverse = reverse }

// Cell returns the display value at (row, col). Out-of-range coordinates
// yield the empty sentinel, never an error. An unresolved in-range cell
// returns Placeholder and queues a fetch window around the row; repeated
// reads of the same cell within one drain cycle queue no duplicate work.
func (m *Model) Cell(row, col int) string {
	if row < 0 || row >= m.length || col < 0 || col >= len(m.columns) {
		return ""
	}
	if cells, ok := m.cells[row]; ok {
		if col < len(cells) {
			return cells[col]
		}
		return ""
	}
	m.request(row)
	return Placeholder
}

// Key returns the stable catalog key of a row. Unresolved rows trigger the
// same load path as Cell and report ErrUnresolved instead of blocking.
func (m *Model) Key(row int) (string, error) {
	if row < 0 || row >= m.length {
		return "", ErrUnresolved
	}
	if key, ok := m.keys[row]; ok {
		return key, nil
	}
	m.request(row)
	return "", ErrUnresolved
}

// request queues a chunk window covering row unless the row is already
// covered by queued or in-flight work.
func (m *Model) request(row int) {
	if m.covered(row) {
		return
	}
	var r Range
	switch {
	case m.chunkSize <= 1:
		r = Range{Start: row, End: row}
	case m.reverse:
		r = Range{Start: row - m.chunkSize + 1, End: row}
	default:
		r = Range{Start: row, End: row + m.chunkSize - 1}
	}
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > m.length-1 {
		r.End = m.length - 1
	}
	m.queue = append(m.queue, r)
}

func (m *Model) covered(row int) bool {
	for _, r := range m.queue {
		if r.contains(row) {
			return true
		}
	}
	for _, r := range m.pending {
		if r.contains(row) {
			return true
		}
	}
	return false
}

// Drain atomically returns and clears the queued ranges, marking them
// pending until Complete is called for the batch. An empty batch has no
// ranges and needs no dispatch.
func (m *Model) Drain() Batch {
	ranges := m.queue
	m.queue = nil
	m.pending = append(m.pending, ranges...)
	return Batch{Gen: m.gen, Ranges: ranges}
}

// Apply installs fetched rows. Results from an older generation, or rows
// that fell out of range after a reset, are dropped.
func (m *Model) Apply(gen int64, rows []Row) {
	if gen != m.gen {
		return
	}
	for _, row := range rows {
		if row.Index < 0 || row.Index >= m.length {
			continue
		}
		if _, ok := m.cells[row.Index]; !ok {
			m.resolved++
		}
		m.cells[row.Index] = row.Cells
		m.keys[row.Index] = row.Key
	}
}

// Complete marks a dispatched batch as finished, releasing its pending
// ranges so failed rows can be re-requested later.
func (m *Model) Complete(b Batch) {
	if b.Gen != m.gen {
		return
	}
	remaining := m.pending[:0]
	for _, p := range m.pending {
		if !batchHas(b.Ranges, p) {
			remaining = append(remaining, p)
		}
	}
	m.pending = remaining
}

func batchHas(ranges []Range, r Range) bool {
	for _, b := range ranges {
		if b == r {
			return true
		}
	}
	return false
}

// CanGrow reports whether newLen would extend the visible row range.
func (m *Model) CanGrow(newLen int) bool { return newLen > m.length }

// Grow extends the visible row range to newLen in one atomic step without
// disturbing already-resolved cells. Shrinking is ignored; a swapped
// catalog goes through Invalidate instead. Returns the number of rows
// added.
func (m *Model) Grow(newLen int) int {
	if newLen <= m.length {
		return 0
	}
	delta := newLen - m.length
	m.length = newLen
	return delta
}

// Invalidate resets the model for a swapped catalog: all cached cells,
// keys, and queued work are discarded and the generation is bumped so
// in-flight results are ignored when they arrive.
func (m *Model) Invalidate(newLen int) {
	if newLen < 0 {
		newLen = 0
	}
	m.length = newLen
	m.cells = map[int][]string{}
	m.keys = map[int]string{}
	m.queue = nil
	m.pending = nil
	m.resolved = 0
	m.gen++
}
