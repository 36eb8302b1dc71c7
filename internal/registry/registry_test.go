package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopRenderer struct{}

func (nopRenderer) Resize(int, int) {}
func (nopRenderer) View() string    { return "" }

func nopFactory(int, int) Renderer { return nopRenderer{} }

func TestRegisterValidation(t *testing.T) {
	reset()

	assert.Error(t, Register("", Entry{Capabilities: []Capability{CapLines}, New: nopFactory}))
	assert.Error(t, Register("braille", Entry{Capabilities: []Capability{CapLines}}))
	assert.Error(t, Register("braille", Entry{New: nopFactory}))

	require.NoError(t, Register("braille", Entry{Capabilities: []Capability{CapLines}, New: nopFactory}))
	assert.Error(t, Register("braille", Entry{Capabilities: []Capability{CapLines}, New: nopFactory}),
		"duplicate names are wiring mistakes")
}

func TestForFiltersByCapability(t *testing.T) {
	reset()
	require.NoError(t, Register("braille", Entry{Capabilities: []Capability{CapLines}, New: nopFactory}))
	require.NoError(t, Register("blocks", Entry{Capabilities: []Capability{CapHeatmap}, New: nopFactory}))
	require.NoError(t, Register("both", Entry{Capabilities: []Capability{CapLines, CapHeatmap}, New: nopFactory}))

	assert.Equal(t, []string{"both", "braille"}, For(CapLines))
	assert.Equal(t, []string{"blocks", "both"}, For(CapHeatmap))
	assert.Equal(t, []string{"blocks", "both", "braille"}, Names())

	e, ok := Lookup("blocks")
	require.True(t, ok)
	assert.NotNil(t, e.New(10, 5))

	_, ok = Lookup("missing")
	assert.False(t, ok)
}
