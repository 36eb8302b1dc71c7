package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nbsview.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[[catalog]]
kind = "stream"
name = "live"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Viewer.ChunkSize)
	assert.Equal(t, 100, cfg.Viewer.RefreshMS)
	assert.Equal(t, 2000, cfg.Viewer.DynamicMS)
	assert.Equal(t, "braille", cfg.Renderers.Lines)
	require.Len(t, cfg.Catalogs, 1)
	assert.Equal(t, "stream", cfg.Catalogs[0].Kind)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[viewer]
chunk_size = 10
refresh_ms = 250
log_file = "/tmp/nbsview.log"

[[catalog]]
kind = "sqlite"
name = "archive"
path = "/data/runs.db"

[[catalog]]
kind = "stream"
name = "live"
documents = "/data/stream.ndjson"

[renderers]
lines = "spark"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Viewer.ChunkSize)
	assert.Equal(t, 250, cfg.Viewer.RefreshMS)
	assert.Equal(t, "/tmp/nbsview.log", cfg.Viewer.LogFile)
	assert.Equal(t, "spark", cfg.Renderers.Lines)
	assert.Equal(t, "blocks", cfg.Renderers.Heatmap)
	require.Len(t, cfg.Catalogs, 2)
	assert.Equal(t, "/data/runs.db", cfg.Catalogs[0].Path)
	assert.Equal(t, "/data/stream.ndjson", cfg.Catalogs[1].Documents)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[viewer]
chunk_sized = 10

[[catalog]]
kind = "stream"
name = "live"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown keys")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no catalogs", `[viewer]` + "\n" + `chunk_size = 5`, "at least one"},
		{"bad kind", "[[catalog]]\nkind = \"mongo\"\nname = \"x\"", "unknown kind"},
		{"sqlite needs path", "[[catalog]]\nkind = \"sqlite\"\nname = \"x\"", "requires path"},
		{"duplicate names", "[[catalog]]\nkind = \"stream\"\nname = \"x\"\n[[catalog]]\nkind = \"stream\"\nname = \"x\"", "duplicate name"},
		{"bad chunk size", "[viewer]\nchunk_size = 0\n[[catalog]]\nkind = \"stream\"\nname = \"x\"", "chunk_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
