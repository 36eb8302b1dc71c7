package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// DuckDBCatalog reads runs from a DuckDB file exported with one row per
// signal element. DuckDB supports concurrent readers on an attached
// read-only database, so no snapshot copy is needed.
//
// Schema:
//
//	runs(position BIGINT, uid VARCHAR, start_json VARCHAR, stop_json VARCHAR)
//	signal_points(uid VARCHAR, key VARCHAR, idx BIGINT, value DOUBLE,
//	              shape_json VARCHAR)
type DuckDBCatalog struct {
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
	runs map[string]*catalog.Run
}

// NewDuckDBCatalog returns a catalog over the given database file.
func NewDuckDBCatalog(dbPath string) *DuckDBCatalog {
	return &DuckDBCatalog{dbPath: dbPath, runs: map[string]*catalog.Run{}}
}

func (c *DuckDBCatalog) Kind() catalog.Kind { return catalog.KindDuckDB }

func (c *DuckDBCatalog) Columns() []string { return catalog.Columns }

// Close releases the attached database.
func (c *DuckDBCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
		c.conn = nil
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	return errors.Join(errs...)
}

// ensureOpenLocked attaches the catalog database read-only through an
// in-memory instance, so a writer holding the file never blocks us.
func (c *DuckDBCatalog) ensureOpenLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("duckdb: open in-memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("duckdb: conn: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET enable_progress_bar=false"); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return fmt.Errorf("duckdb: set options: %w", err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("ATTACH %s AS cat (READ_ONLY);", sqlLit(c.dbPath))); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return fmt.Errorf("duckdb: attach %s: %w", c.dbPath, err)
	}

	c.db = db
	c.conn = conn
	return nil
}

func sqlLit(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (c *DuckDBCatalog) Len() (int, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpenLocked(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cat.runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count runs: %w", err)
	}
	return n, nil
}

func (c *DuckDBCatalog) UID(i int) (string, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpenLocked(ctx); err != nil {
		return "", err
	}
	var uid string
	err := c.conn.QueryRowContext(ctx, `SELECT uid FROM cat.runs WHERE position = ?`, i).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", catalog.ErrOutOfRange
	}
	if err != nil {
		return "", fmt.Errorf("duckdb: uid at %d: %w", i, err)
	}
	return uid, nil
}

func (c *DuckDBCatalog) Get(i int) (*catalog.Run, error) {
	uid, err := c.UID(i)
	if err != nil {
		return nil, err
	}
	return c.GetByUID(uid)
}

func (c *DuckDBCatalog) GetByUID(uid string) (*catalog.Run, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()
	if run, ok := c.runs[uid]; ok {
		return run, nil
	}
	if err := c.ensureOpenLocked(ctx); err != nil {
		return nil, err
	}
	run, err := c.loadRunLocked(ctx, uid)
	if err != nil {
		return nil, err
	}
	c.runs[uid] = run
	return run, nil
}

func (c *DuckDBCatalog) ItemsSlice(start, stop int) ([]catalog.Item, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpenLocked(ctx); err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx, `
      SELECT uid FROM cat.runs
      WHERE position >= ? AND position <= ?
      ORDER BY position
    `, start, stop)
	if err != nil {
		return nil, fmt.Errorf("duckdb: items slice: %w", err)
	}
	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("duckdb: scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("duckdb: rows: %w", err)
	}
	rows.Close()

	items := make([]catalog.Item, 0, len(uids))
	for _, uid := range uids {
		run, ok := c.runs[uid]
		if !ok {
			run, err = c.loadRunLocked(ctx, uid)
			if err != nil {
				return nil, err
			}
			c.runs[uid] = run
		}
		items = append(items, catalog.Item{UID: uid, Run: run})
	}
	return items, nil
}

func (c *DuckDBCatalog) loadRunLocked(ctx context.Context, uid string) (*catalog.Run, error) {
	var startJSON string
	var stopJSON sql.NullString
	err := c.conn.QueryRowContext(ctx,
		`SELECT start_json, stop_json FROM cat.runs WHERE uid = ?`, uid).
		Scan(&startJSON, &stopJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("duckdb: no run %q", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("duckdb: get run %q: %w", uid, err)
	}

	var start map[string]any
	if err := json.Unmarshal([]byte(startJSON), &start); err != nil {
		return nil, fmt.Errorf("duckdb: run %q start: %w", uid, err)
	}
	run := catalog.NewRun(start)

	rows, err := c.conn.QueryContext(ctx, `
      SELECT key, shape_json, value FROM cat.signal_points
      WHERE uid = ?
      ORDER BY key, idx
    `, uid)
	if err != nil {
		return nil, fmt.Errorf("duckdb: signal points %q: %w", uid, err)
	}
	defer rows.Close()

	var curKey, curShape string
	var values []float64
	flush := func() error {
		if curKey == "" {
			return nil
		}
		var shape []int
		if err := json.Unmarshal([]byte(curShape), &shape); err != nil {
			return fmt.Errorf("duckdb: signal %q shape: %w", curKey, err)
		}
		arr, err := ndarray.New(values, shape...)
		if err != nil {
			return fmt.Errorf("duckdb: signal %q: %w", curKey, err)
		}
		run.SetSignal(curKey, arr)
		return nil
	}
	for rows.Next() {
		var key, shapeJSON string
		var value float64
		if err := rows.Scan(&key, &shapeJSON, &value); err != nil {
			return nil, fmt.Errorf("duckdb: scan point: %w", err)
		}
		if key != curKey {
			if err := flush(); err != nil {
				return nil, err
			}
			curKey, curShape, values = key, shapeJSON, nil
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: point rows: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if stopJSON.Valid && stopJSON.String != "" {
		var stop map[string]any
		if err := json.Unmarshal([]byte(stopJSON.String), &stop); err != nil {
			return nil, fmt.Errorf("duckdb: run %q stop: %w", uid, err)
		}
		run.SetStop(stop)
	}
	return run, nil
}
