// Package registry maps renderer names to factories. Renderers are
// registered at process start from explicit wiring; lookup is by
// capability so a plot view can ask for whatever draws its series shape.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Capability tags what a renderer can draw.
type Capability string

const (
	// CapLines draws one or more 1-D series against a shared x axis.
	CapLines Capability = "lines"
	// CapHeatmap draws a 2-D intensity grid.
	CapHeatmap Capability = "heatmap"
)

// Factory builds a renderer instance for the given terminal cell box.
type Factory func(width, height int) Renderer

// Renderer is the drawing contract: the plot view hands it data and asks
// for a rendered frame. Implementations live in the widgets package.
type Renderer interface {
	Resize(width, height int)
	View() string
}

// Entry describes one registered renderer.
type Entry struct {
	Capabilities []Capability
	New          Factory
}

var (
	mu      sync.RWMutex
	entries = map[string]Entry{}
)

// Register adds a named renderer. Duplicate names, nil factories, and
// entries with no capabilities are wiring mistakes and fail loudly.
func Register(name string, e Entry) error {
	if name == "" {
		return fmt.Errorf("registry: empty renderer name")
	}
	if e.New == nil {
		return fmt.Errorf("registry: renderer %q has nil factory", name)
	}
	if len(e.Capabilities) == 0 {
		return fmt.Errorf("registry: renderer %q declares no capabilities", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := entries[name]; dup {
		return fmt.Errorf("registry: renderer %q already registered", name)
	}
	entries[name] = e
	return nil
}

// MustRegister is Register for static wiring at process start.
func MustRegister(name string, e Entry) {
	if err := Register(name, e); err != nil {
		panic(err)
	}
}

// Lookup returns the named entry.
func Lookup(name string) (Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := entries[name]
	return e, ok
}

// For returns the names of every renderer carrying the capability, sorted
// for stable iteration.
func For(cap Capability) []string {
	mu.RLock()
	defer mu.RUnlock()
	var names []string
	for name, e := range entries {
		for _, c := range e.Capabilities {
			if c == cap {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// Names returns every registered renderer name, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reset clears the registry. Tests only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	entries = map[string]Entry{}
}
