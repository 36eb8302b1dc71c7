// Package logging configures the process-wide structured logger. A TUI
// owns the terminal, so logs go to a file or nowhere, never to stdout.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog logger. An empty path discards all
// output. The returned closer flushes and closes the log file; callers
// defer it from main.
func Setup(path string, level slog.Level) (func() error, error) {
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return f.Close, nil
}
