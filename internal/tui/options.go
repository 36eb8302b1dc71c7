package tui

import (
	"time"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/config"
	"github.com/xraygui/nbs-viewer-sub001/internal/transport"
)

// Source is one browsable catalog plus, for stream catalogs, the document
// channel its dispatcher fans out on. Docs is nil for file-backed catalogs.
type Source struct {
	Name    string
	Catalog catalog.Catalog
	Stream  *catalog.Stream
	Docs    <-chan transport.Document
}

type Options struct {
	Sources []Source

	ChunkSize    int
	RefreshEvery time.Duration
	DynamicEvery time.Duration

	Renderers config.RendererConfig

	Debug bool
}
