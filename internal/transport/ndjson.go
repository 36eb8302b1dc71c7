package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
)

// envelope is the wire form of one document line.
type envelope struct {
	Name string         `json:"name"`
	Doc  map[string]any `json:"doc"`
}

// NDJSONSource reads documents from newline-delimited JSON, one
// {"name": ..., "doc": {...}} object per line. Blank lines, malformed
// lines, and unknown document names are skipped with a debug log rather
// than stopping the stream.
type NDJSONSource struct {
	scanner *bufio.Scanner
}

// NewNDJSONSource wraps r. Lines up to 1MB are accepted; large image
// event pages can get close.
func NewNDJSONSource(r io.Reader) *NDJSONSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &NDJSONSource{scanner: scanner}
}

// Next returns the next well-formed document, or io.EOF when the stream
// ends.
func (s *NDJSONSource) Next(ctx context.Context) (Document, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			slog.Debug("transport: skipping malformed line", "err", err)
			continue
		}
		if !KnownName(env.Name) {
			slog.Debug("transport: skipping unknown document", "name", env.Name)
			continue
		}
		return Document{Name: env.Name, Doc: env.Doc}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Document{}, err
	}
	return Document{}, io.EOF
}
