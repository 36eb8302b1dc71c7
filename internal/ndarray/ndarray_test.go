package ndarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReshape(t *testing.T) {
	a := Arange(6)
	b, err := a.Reshape(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, b.Shape)
	assert.Equal(t, a.Data, b.Data)

	_, err = a.Reshape(4, 2)
	var se *ShapeError
	require.ErrorAs(t, err, &se)
}

func TestSwapLastAxes(t *testing.T) {
	a, err := New([]float64{
		1, 2, 3,
		4, 5, 6,
	}, 2, 3)
	require.NoError(t, err)

	b := a.SwapLastAxes()
	assert.Equal(t, []int{3, 2}, b.Shape)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, b.Data)

	// Rank 3: only the last two axes move.
	c, err := New([]float64{
		1, 2,
		3, 4,

		5, 6,
		7, 8,
	}, 2, 2, 2)
	require.NoError(t, err)
	d := c.SwapLastAxes()
	assert.Equal(t, []int{2, 2, 2}, d.Shape)
	assert.Equal(t, []float64{1, 3, 2, 4, 5, 7, 6, 8}, d.Data)

	// Rank 1 is unchanged.
	e := Arange(3)
	assert.Equal(t, e, e.SwapLastAxes())
}

func TestDivBroadcastAppendsTrailingDims(t *testing.T) {
	// y of shape (2,2,2) divided by norm of shape (2,): the norm must be
	// expanded to (2,1,1), never to (1,1,2).
	y, err := New([]float64{
		2, 4,
		6, 8,

		10, 20,
		30, 40,
	}, 2, 2, 2)
	require.NoError(t, err)
	norm := FromSlice([]float64{2, 10})

	out, err := DivBroadcast(y, norm)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, out.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 1, 2, 3, 4}, out.Data)
}

func TestDivBroadcastShapeMismatch(t *testing.T) {
	y := Arange(6)
	norm := FromSlice([]float64{1, 2, 3})
	_, err := DivBroadcast(y, norm)
	var se *ShapeError
	require.ErrorAs(t, err, &se)
}

func TestProd(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3})
	b := FromSlice([]float64{2, 2, 2})
	p, err := Prod([]*Array{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, p.Data)

	p, err = Prod(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMeanStack(t *testing.T) {
	a := FromSlice([]float64{2, 4})
	b := FromSlice([]float64{4, 8})
	c := FromSlice([]float64{6, 12})
	m, err := MeanStack([]*Array{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 8}, m.Data)
}

func TestReductions(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3, 4})
	assert.Equal(t, 2.5, a.MeanAll())
	assert.Equal(t, 10.0, a.SumAll())
	assert.Equal(t, 4.0, a.MaxAll())
	assert.Equal(t, 1.0, a.MinAll())
}

func TestHeadClamps(t *testing.T) {
	a := Arange(5)
	assert.Equal(t, []float64{0, 1, 2}, a.Head(3).Data)
	assert.Equal(t, 5, a.Head(10).Size())
	assert.Equal(t, 0, a.Head(-1).Size())
}
