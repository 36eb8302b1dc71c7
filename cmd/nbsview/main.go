package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/config"
	"github.com/xraygui/nbs-viewer-sub001/internal/logging"
	"github.com/xraygui/nbs-viewer-sub001/internal/registry"
	"github.com/xraygui/nbs-viewer-sub001/internal/store"
	"github.com/xraygui/nbs-viewer-sub001/internal/transport"
	"github.com/xraygui/nbs-viewer-sub001/internal/tui"
	"github.com/xraygui/nbs-viewer-sub001/internal/widgets"
)

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func registerRenderers() {
	registry.MustRegister("braille", registry.Entry{
		Capabilities: []registry.Capability{registry.CapLines},
		New: func(w, h int) registry.Renderer {
			return widgets.NewLineChart("", w, h)
		},
	})
	registry.MustRegister("blocks", registry.Entry{
		Capabilities: []registry.Capability{registry.CapHeatmap},
		New: func(w, h int) registry.Renderer {
			return widgets.NewHeatmap("", w, h)
		},
	})
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	var (
		configPath = flag.String("config", getenvOr("NBSVIEW_CONFIG", ""), "TOML config path")
		sqlitePath = flag.String("sqlite", os.Getenv("NBSVIEW_SQLITE"), "browse a sqlite catalog at this path (no config needed)")
		duckdbPath = flag.String("duckdb", os.Getenv("NBSVIEW_DUCKDB"), "browse a duckdb catalog at this path (no config needed)")
		documents  = flag.String("documents", "", "NDJSON document file for a live stream catalog; \"-\" = stdin")
		logFile    = flag.String("log", os.Getenv("NBSVIEW_LOG"), "structured log file (overrides config)")
		check      = flag.Bool("check", false, "open the catalogs and print counts, then exit (no TUI)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *sqlitePath, *duckdbPath, *documents)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logFile != "" {
		cfg.Viewer.LogFile = *logFile
	}

	closeLog, err := logging.Setup(cfg.Viewer.LogFile, slog.LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	registerRenderers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources, closers, err := buildSources(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	if *check {
		if err := runCheck(sources); err != nil {
			fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	m := tui.NewApp(tui.Options{
		Sources:      sources,
		ChunkSize:    cfg.Viewer.ChunkSize,
		RefreshEvery: time.Duration(cfg.Viewer.RefreshMS) * time.Millisecond,
		DynamicEvery: time.Duration(cfg.Viewer.DynamicMS) * time.Millisecond,
		Renderers:    cfg.Renderers,
		Debug:        os.Getenv("NBSVIEW_DEBUG") != "",
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the TOML config, or synthesizes one from the shortcut
// flags when no config file is given.
func loadConfig(path, sqlitePath, duckdbPath, documents string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Defaults()
	if sqlitePath != "" {
		cfg.Catalogs = append(cfg.Catalogs, config.CatalogConfig{
			Kind: "sqlite", Name: "sqlite", Path: sqlitePath,
		})
	}
	if duckdbPath != "" {
		cfg.Catalogs = append(cfg.Catalogs, config.CatalogConfig{
			Kind: "duckdb", Name: "duckdb", Path: duckdbPath,
		})
	}
	if documents != "" {
		cfg.Catalogs = append(cfg.Catalogs, config.CatalogConfig{
			Kind: "stream", Name: "live", Documents: documents,
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("need -config, -sqlite, -duckdb, or -documents: %w", err)
	}
	return &cfg, nil
}

// buildSources constructs one catalog per config entry. Stream catalogs get
// a dispatcher goroutine pumping their document file (or stdin) into the
// channel the TUI drains.
func buildSources(ctx context.Context, cfg *config.Config) ([]tui.Source, []func() error, error) {
	var sources []tui.Source
	var closers []func() error
	for _, cc := range cfg.Catalogs {
		switch cc.Kind {
		case "sqlite":
			cat := store.NewSQLiteCatalog(cc.Path)
			sources = append(sources, tui.Source{Name: cc.Name, Catalog: cat})
		case "duckdb":
			cat := store.NewDuckDBCatalog(cc.Path)
			closers = append(closers, cat.Close)
			sources = append(sources, tui.Source{Name: cc.Name, Catalog: cat})
		case "stream":
			src, closer, err := openDocuments(cc.Documents)
			if err != nil {
				return nil, closers, fmt.Errorf("stream %q: %w", cc.Name, err)
			}
			if closer != nil {
				closers = append(closers, closer)
			}
			stream := catalog.NewStream()
			d := transport.NewDispatcher()
			ch := make(chan transport.Document, 64)
			d.Subscribe(ch)
			go func() {
				if err := d.Run(ctx, src); err != nil {
					slog.Error("dispatcher exited", "catalog", cc.Name, "err", err)
				}
			}()
			sources = append(sources, tui.Source{
				Name: cc.Name, Catalog: stream, Stream: stream, Docs: ch,
			})
		default:
			return nil, closers, fmt.Errorf("unknown catalog kind %q", cc.Kind)
		}
	}
	return sources, closers, nil
}

func openDocuments(path string) (transport.Source, func() error, error) {
	if path == "" || path == "-" {
		return transport.NewNDJSONSource(os.Stdin), nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return transport.NewNDJSONSource(f), f.Close, nil
}

func runCheck(sources []tui.Source) error {
	for _, s := range sources {
		n, err := s.Catalog.Len()
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		fmt.Printf("%s [%s]: %d runs\n", s.Name, s.Catalog.Kind(), n)
		if n > 0 {
			items, err := s.Catalog.ItemsSlice(0, min(n-1, 4))
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			for _, it := range items {
				if it.Run != nil {
					fmt.Printf("  - scan %d (%s)\n", it.Run.ScanID(), it.UID)
				}
			}
			if n > 5 {
				fmt.Printf("  ... and %d more\n", n-5)
			}
		}
	}
	fmt.Println("check passed")
	return nil
}
