package table

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
)

// CatalogFetcher adapts a catalog to the Fetcher interface, rendering each
// run into display cells.
type CatalogFetcher struct {
	cat catalog.Catalog
}

// NewCatalogFetcher wraps a catalog.
func NewCatalogFetcher(cat catalog.Catalog) *CatalogFetcher {
	return &CatalogFetcher{cat: cat}
}

func (f *CatalogFetcher) Columns() []string { return f.cat.Columns() }

func (f *CatalogFetcher) Len() (int, error) { return f.cat.Len() }

// FetchRange materializes rows [start, end]. A run that fails to render is
// replaced by an error row rather than failing the range.
func (f *CatalogFetcher) FetchRange(ctx context.Context, start, end int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := f.cat.ItemsSlice(start, end)
	if err != nil {
		return nil, fmt.Errorf("table: slice %d-%d: %w", start, end, err)
	}
	rows := make([]Row, 0, len(items))
	for i, item := range items {
		cells := errorRow(len(f.cat.Columns()))
		if item.Run != nil {
			cells = item.Run.ToRow()
		} else {
			slog.Debug("table: run missing from slice", "index", start+i, "uid", item.UID)
		}
		rows = append(rows, Row{Index: start + i, Key: item.UID, Cells: cells})
	}
	return rows, nil
}

func errorRow(n int) []string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = "x"
	}
	return cells
}
