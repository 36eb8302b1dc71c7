// Package transport delivers acquisition documents to the live catalog: a
// lazy, unbounded sequence of (name, body) pairs where one start document
// is eventually followed by zero or more data documents and at most one
// stop. Sources never assume the full order arrives; consumers tolerate
// partial order.
package transport

import "context"

// Document names, in the order the acquisition emits them.
const (
	NameStart      = "start"
	NameDescriptor = "descriptor"
	NameEvent      = "event"
	NameEventPage  = "event_page"
	NameStop       = "stop"
)

// Document is one named document off the wire.
type Document struct {
	Name string
	Doc  map[string]any
}

// Source yields documents one at a time. Next blocks until a document is
// available, the source is exhausted (io.EOF), or ctx is done.
type Source interface {
	Next(ctx context.Context) (Document, error)
}

// KnownName reports whether name is a document kind this system routes.
func KnownName(name string) bool {
	switch name {
	case NameStart, NameDescriptor, NameEvent, NameEventPage, NameStop:
		return true
	}
	return false
}
