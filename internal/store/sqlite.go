// Package store provides archived catalog backends: SQLite and DuckDB
// files written by an acquisition exporter, opened read-only by the
// viewer.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// SQLiteCatalog reads runs from a SQLite file. The acquisition side may
// still be appending, so every read goes through a snapshot copy of the
// db (plus -wal/-shm) keyed by file signature; the live file is never
// opened directly and writer locks never stall the UI.
//
// Schema:
//
//	runs(position INTEGER PRIMARY KEY, uid TEXT UNIQUE,
//	     start_json TEXT, stop_json TEXT)
//	signals(uid TEXT, key TEXT, shape_json TEXT, data BLOB,
//	        PRIMARY KEY(uid, key))
//
// data is little-endian float64, row-major.
type SQLiteCatalog struct {
	dbPath string

	mu          sync.Mutex
	snapshotSig string
	snapshot    string
	runs        map[string]*catalog.Run
}

// NewSQLiteCatalog returns a catalog over the given database file.
func NewSQLiteCatalog(dbPath string) *SQLiteCatalog {
	return &SQLiteCatalog{dbPath: dbPath, runs: map[string]*catalog.Run{}}
}

func (c *SQLiteCatalog) Kind() catalog.Kind { return catalog.KindSQLite }

func (c *SQLiteCatalog) Columns() []string { return catalog.Columns }

func (c *SQLiteCatalog) Len() (int, error) {
	db, err := c.openSnapshot()
	if err != nil {
		return 0, err
	}
	if db == nil {
		return 0, nil
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count runs: %w", err)
	}
	return n, nil
}

func (c *SQLiteCatalog) UID(i int) (string, error) {
	db, err := c.openSnapshot()
	if err != nil {
		return "", err
	}
	if db == nil {
		return "", catalog.ErrOutOfRange
	}
	defer db.Close()

	var uid string
	err = db.QueryRow(`SELECT uid FROM runs WHERE position = ?`, i).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", catalog.ErrOutOfRange
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: uid at %d: %w", i, err)
	}
	return uid, nil
}

func (c *SQLiteCatalog) Get(i int) (*catalog.Run, error) {
	uid, err := c.UID(i)
	if err != nil {
		return nil, err
	}
	return c.GetByUID(uid)
}

func (c *SQLiteCatalog) GetByUID(uid string) (*catalog.Run, error) {
	c.mu.Lock()
	if run, ok := c.runs[uid]; ok {
		c.mu.Unlock()
		return run, nil
	}
	c.mu.Unlock()

	db, err := c.openSnapshot()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("sqlite: no database at %s", c.dbPath)
	}
	defer db.Close()

	run, err := c.loadRun(db, uid)
	if err != nil {
		return nil, err
	}
	c.remember(run)
	return run, nil
}

func (c *SQLiteCatalog) ItemsSlice(start, stop int) ([]catalog.Item, error) {
	db, err := c.openSnapshot()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return []catalog.Item{}, nil
	}
	defer db.Close()

	rows, err := db.Query(`
      SELECT uid FROM runs
      WHERE position >= ? AND position <= ?
      ORDER BY position
    `, start, stop)
	if err != nil {
		return nil, fmt.Errorf("sqlite: items slice: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("sqlite: scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	items := make([]catalog.Item, 0, len(uids))
	for _, uid := range uids {
		run, err := c.cachedOrLoad(db, uid)
		if err != nil {
			return nil, err
		}
		items = append(items, catalog.Item{UID: uid, Run: run})
	}
	return items, nil
}

func (c *SQLiteCatalog) cachedOrLoad(db *sql.DB, uid string) (*catalog.Run, error) {
	c.mu.Lock()
	if run, ok := c.runs[uid]; ok {
		c.mu.Unlock()
		return run, nil
	}
	c.mu.Unlock()

	run, err := c.loadRun(db, uid)
	if err != nil {
		return nil, err
	}
	c.remember(run)
	return run, nil
}

func (c *SQLiteCatalog) remember(run *catalog.Run) {
	c.mu.Lock()
	c.runs[run.UID()] = run
	c.mu.Unlock()
}

func (c *SQLiteCatalog) loadRun(db *sql.DB, uid string) (*catalog.Run, error) {
	var startJSON string
	var stopJSON sql.NullString
	err := db.QueryRow(`SELECT start_json, stop_json FROM runs WHERE uid = ?`, uid).
		Scan(&startJSON, &stopJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: no run %q", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get run %q: %w", uid, err)
	}

	var start map[string]any
	if err := json.Unmarshal([]byte(startJSON), &start); err != nil {
		return nil, fmt.Errorf("sqlite: run %q start: %w", uid, err)
	}
	run := catalog.NewRun(start)

	rows, err := db.Query(`SELECT key, shape_json, data FROM signals WHERE uid = ? ORDER BY key`, uid)
	if err != nil {
		return nil, fmt.Errorf("sqlite: signals %q: %w", uid, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, shapeJSON string
		var blob []byte
		if err := rows.Scan(&key, &shapeJSON, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan signal: %w", err)
		}
		var shape []int
		if err := json.Unmarshal([]byte(shapeJSON), &shape); err != nil {
			return nil, fmt.Errorf("sqlite: signal %q shape: %w", key, err)
		}
		arr, err := ndarray.New(decodeBlob(blob), shape...)
		if err != nil {
			return nil, fmt.Errorf("sqlite: signal %q: %w", key, err)
		}
		run.SetSignal(key, arr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: signal rows: %w", err)
	}

	if stopJSON.Valid && stopJSON.String != "" {
		var stop map[string]any
		if err := json.Unmarshal([]byte(stopJSON.String), &stop); err != nil {
			return nil, fmt.Errorf("sqlite: run %q stop: %w", uid, err)
		}
		run.SetStop(stop)
	}
	return run, nil
}

func (c *SQLiteCatalog) openSnapshot() (*sql.DB, error) {
	path, err := c.ensureSnapshot()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open snapshot: %w", err)
	}
	return db, nil
}

// ensureSnapshot copies the db (and sidecar -wal/-shm) into a temp dir
// when its signature changed since the last copy. Returns "" when the
// source file does not exist yet.
func (c *SQLiteCatalog) ensureSnapshot() (string, error) {
	src := filepath.Clean(c.dbPath)
	if src == "" {
		return "", nil
	}
	st, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: stat db: %w", err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("sqlite: db is not a file")
	}

	wal := src + "-wal"
	shm := src + "-shm"
	sig := fmt.Sprintf("%s:%d:%d", src, st.Size(), st.ModTime().UnixNano())
	if wst, err := os.Stat(wal); err == nil && wst.Mode().IsRegular() {
		sig += fmt.Sprintf(":%d:%d", wst.Size(), wst.ModTime().UnixNano())
	} else {
		sig += ":no-wal"
	}
	if sst, err := os.Stat(shm); err == nil && sst.Mode().IsRegular() {
		sig += fmt.Sprintf(":%d:%d", sst.Size(), sst.ModTime().UnixNano())
	} else {
		sig += ":no-shm"
	}

	c.mu.Lock()
	if c.snapshotSig == sig && c.snapshot != "" {
		path := c.snapshot
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	dstDir := filepath.Join(os.TempDir(), "nbsview_catalog")
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("sqlite: mkdir: %w", err)
	}
	dst := filepath.Join(dstDir, "catalog.db")

	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	_ = copyFile(wal, dst+"-wal")
	_ = copyFile(shm, dst+"-shm")

	c.mu.Lock()
	c.snapshotSig = sig
	c.snapshot = dst
	c.mu.Unlock()
	return dst, nil
}

func copyFile(src, dst string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("sqlite: not a regular file: %s", src)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("sqlite: create: %w", err)
	}
	if _, err := out.ReadFrom(in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: close: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: rename: %w", err)
	}
	return nil
}

func encodeBlob(data []float64) []byte {
	out := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

func decodeBlob(blob []byte) []float64 {
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out
}
