package table

import (
	"context"
	"log/slog"
)

// Range is an inclusive span of catalog rows to fetch together.
type Range struct {
	Start, End int
}

func (r Range) contains(row int) bool {
	return row >= r.Start && row <= r.End
}

// Row is one materialized table row.
type Row struct {
	Index int
	Key   string
	Cells []string
}

// Fetcher materializes a contiguous row range from the backing catalog. It
// holds no model state; implementations are safe to call from a background
// goroutine.
type Fetcher interface {
	Columns() []string
	Len() (int, error)
	FetchRange(ctx context.Context, start, end int) ([]Row, error)
}

// LoadRanges fetches the queued ranges of one dispatch batch. Ranges whose
// start row is already covered by an earlier fetch in the same batch are
// silently skipped; a failed range is logged and skipped without aborting
// the batch. Within a range, rows come back in ascending index order.
func LoadRanges(ctx context.Context, f Fetcher, ranges []Range) []Row {
	var fetched []Range
	var out []Row
	for _, r := range ranges {
		if ctx.Err() != nil {
			return out
		}
		if coveredStart(fetched, r) {
			continue
		}
		rows, err := f.FetchRange(ctx, r.Start, r.End)
		if err != nil {
			slog.Warn("table: range fetch failed", "start", r.Start, "end", r.End, "err", err)
			continue
		}
		fetched = append(fetched, r)
		out = append(out, rows...)
	}
	return out
}

// coveredStart reports whether r's start row falls inside an already
// fetched range (first-come overlap de-duplication).
func coveredStart(fetched []Range, r Range) bool {
	for _, f := range fetched {
		if f.contains(r.Start) {
			return true
		}
	}
	return false
}
