package catalog

import "errors"

// Kind tags a catalog implementation. The core switches on this tag instead
// of probing the collaborator's capabilities.
type Kind string

const (
	KindStream Kind = "stream"
	KindSQLite Kind = "sqlite"
	KindDuckDB Kind = "duckdb"
)

// ErrOutOfRange is returned for positions outside [0, Len).
var ErrOutOfRange = errors.New("catalog: position out of range")

// Item pairs a run with its stable key, as yielded by ItemsSlice.
type Item struct {
	UID string
	Run *Run
}

// Catalog is an ordered, append-only sequence of runs addressable by
// integer position or by uid. Length may grow between queries; the
// position→uid mapping is stable once assigned.
type Catalog interface {
	Kind() Kind
	Len() (int, error)
	Columns() []string
	// Get returns the run at position i.
	Get(i int) (*Run, error)
	// UID returns the stable key at position i.
	UID(i int) (string, error)
	// GetByUID returns the run with the given key.
	GetByUID(uid string) (*Run, error)
	// ItemsSlice returns the runs in positions [start, stop] inclusive,
	// clamped to the current length.
	ItemsSlice(start, stop int) ([]Item, error)
}
