// Package config parses nbsview.toml viewer configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level nbsview.toml configuration.
type Config struct {
	Viewer    ViewerConfig    `toml:"viewer"`
	Catalogs  []CatalogConfig `toml:"catalog"`
	Renderers RendererConfig  `toml:"renderers"`
}

// ViewerConfig controls table loading and live refresh cadence.
type ViewerConfig struct {
	ChunkSize int    `toml:"chunk_size"` // rows fetched per table window
	RefreshMS int    `toml:"refresh_ms"` // work-queue drain interval
	DynamicMS int    `toml:"dynamic_ms"` // live-run replot interval
	LogFile   string `toml:"log_file"`   // structured log destination; "" = off
}

// CatalogConfig declares one browsable catalog. Kind is the explicit
// variant tag the viewer switches on; there is no attribute probing.
type CatalogConfig struct {
	Kind      string `toml:"kind"` // stream | sqlite | duckdb
	Name      string `toml:"name"`
	Path      string `toml:"path"`      // database file for sqlite/duckdb
	Documents string `toml:"documents"` // NDJSON document file for stream; "" = stdin
}

// RendererConfig picks the renderer for each series shape.
type RendererConfig struct {
	Lines   string `toml:"lines"`
	Heatmap string `toml:"heatmap"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Viewer: ViewerConfig{
			ChunkSize: 50,
			RefreshMS: 100,
			DynamicMS: 2000,
		},
		Renderers: RendererConfig{
			Lines:   "braille",
			Heatmap: "blocks",
		},
	}
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Viewer.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("viewer.chunk_size must be >= 1"))
	}
	if c.Viewer.RefreshMS < 1 {
		errs = append(errs, fmt.Errorf("viewer.refresh_ms must be >= 1"))
	}
	if c.Viewer.DynamicMS < 1 {
		errs = append(errs, fmt.Errorf("viewer.dynamic_ms must be >= 1"))
	}
	if len(c.Catalogs) == 0 {
		errs = append(errs, fmt.Errorf("at least one [[catalog]] must be configured"))
	}
	seen := map[string]bool{}
	for i, cat := range c.Catalogs {
		switch cat.Kind {
		case "stream":
		case "sqlite", "duckdb":
			if cat.Path == "" {
				errs = append(errs, fmt.Errorf("catalog[%d]: kind %q requires path", i, cat.Kind))
			}
		default:
			errs = append(errs, fmt.Errorf("catalog[%d]: unknown kind %q (stream, sqlite, duckdb)", i, cat.Kind))
		}
		if cat.Name == "" {
			errs = append(errs, fmt.Errorf("catalog[%d]: name must not be empty", i))
		} else if seen[cat.Name] {
			errs = append(errs, fmt.Errorf("catalog[%d]: duplicate name %q", i, cat.Name))
		}
		seen[cat.Name] = true
	}
	if c.Renderers.Lines == "" {
		errs = append(errs, fmt.Errorf("renderers.lines must not be empty"))
	}
	if c.Renderers.Heatmap == "" {
		errs = append(errs, fmt.Errorf("renderers.heatmap must not be empty"))
	}

	return errors.Join(errs...)
}

// Load reads nbsview.toml from the given path. Returns an error if the
// file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %s not found", path)
		}
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}
