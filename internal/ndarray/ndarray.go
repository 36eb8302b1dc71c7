// Package ndarray provides a small dense row-major float64 array used by
// catalog signal buffers and the plot-data pipeline.
package ndarray

import (
	"fmt"
	"math"
)

// ShapeError reports an operation whose operand shapes are incompatible.
type ShapeError struct {
	Op   string
	A, B []int
}

func (e *ShapeError) Error() string {
	if e.B == nil {
		return fmt.Sprintf("ndarray: %s: invalid shape %v", e.Op, e.A)
	}
	return fmt.Sprintf("ndarray: %s: incompatible shapes %v and %v", e.Op, e.A, e.B)
}

// Array is a dense row-major N-dimensional float64 array. A nil shape is
// treated as the scalar-less empty array.
type Array struct {
	Shape []int
	Data  []float64
}

// New builds an array from data with the given shape. The product of the
// shape must equal len(data).
func New(data []float64, shape ...int) (*Array, error) {
	if sizeOf(shape) != len(data) {
		return nil, &ShapeError{Op: "new", A: shape}
	}
	return &Array{Shape: shape, Data: data}, nil
}

// FromSlice wraps a flat slice as a rank-1 array.
func FromSlice(data []float64) *Array {
	return &Array{Shape: []int{len(data)}, Data: data}
}

// Zeros returns a zero-filled array of the given shape.
func Zeros(shape ...int) *Array {
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, sizeOf(shape))}
}

// Arange returns [0, 1, ..., n-1] as a rank-1 array.
func Arange(n int) *Array {
	if n < 0 {
		n = 0
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i)
	}
	return &Array{Shape: []int{n}, Data: data}
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.Shape) }

// Size returns the total number of elements.
func (a *Array) Size() int { return len(a.Data) }

// Outer returns the size of the first dimension, or 0 for an empty shape.
func (a *Array) Outer() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	return &Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
}

// Reshape returns a view of the same data with a new shape. The element
// count must match.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if sizeOf(shape) != len(a.Data) {
		return nil, &ShapeError{Op: "reshape", A: a.Shape, B: shape}
	}
	return &Array{Shape: append([]int(nil), shape...), Data: a.Data}, nil
}

// Head returns the first n elements of the flat data, reshaped to (n,).
// Used to take a common prefix of unevenly filled live buffers. n is
// clamped to the available length.
func (a *Array) Head(n int) *Array {
	if n < 0 {
		n = 0
	}
	if n > len(a.Data) {
		n = len(a.Data)
	}
	return &Array{Shape: []int{n}, Data: a.Data[:n]}
}

// SliceOuter returns the sub-array a[:n] along the first dimension.
func (a *Array) SliceOuter(n int) (*Array, error) {
	if len(a.Shape) == 0 {
		return nil, &ShapeError{Op: "slice", A: a.Shape}
	}
	if n < 0 || n > a.Shape[0] {
		return nil, &ShapeError{Op: "slice", A: a.Shape}
	}
	inner := sizeOf(a.Shape[1:])
	shape := append([]int{n}, a.Shape[1:]...)
	return &Array{Shape: shape, Data: a.Data[:n*inner]}, nil
}

// SwapLastAxes returns a copy with the last two axes transposed. Arrays of
// rank < 2 are returned unchanged.
func (a *Array) SwapLastAxes() *Array {
	r := a.Rank()
	if r < 2 {
		return a
	}
	d1 := a.Shape[r-2]
	d2 := a.Shape[r-1]
	outer := sizeOf(a.Shape[:r-2])
	shape := append([]int(nil), a.Shape...)
	shape[r-2], shape[r-1] = d2, d1

	out := make([]float64, len(a.Data))
	block := d1 * d2
	for o := 0; o < outer; o++ {
		base := o * block
		for i := 0; i < d1; i++ {
			for j := 0; j < d2; j++ {
				out[base+j*d1+i] = a.Data[base+i*d2+j]
			}
		}
	}
	return &Array{Shape: shape, Data: out}
}

// DivBroadcast returns y / norm where norm is broadcast by appending
// trailing singleton dimensions until its rank matches y's (never by
// prepending). The leading dimensions of norm must match y's.
func DivBroadcast(y, norm *Array) (*Array, error) {
	if norm.Rank() > y.Rank() {
		return nil, &ShapeError{Op: "div", A: y.Shape, B: norm.Shape}
	}
	for i, d := range norm.Shape {
		if y.Shape[i] != d {
			return nil, &ShapeError{Op: "div", A: y.Shape, B: norm.Shape}
		}
	}
	inner := sizeOf(y.Shape[norm.Rank():])
	if inner <= 0 {
		inner = 1
	}
	out := make([]float64, len(y.Data))
	for i := range y.Data {
		out[i] = y.Data[i] / norm.Data[i/inner]
	}
	return &Array{Shape: append([]int(nil), y.Shape...), Data: out}, nil
}

// DivScalar returns a / s elementwise.
func (a *Array) DivScalar(s float64) *Array {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = v / s
	}
	return &Array{Shape: append([]int(nil), a.Shape...), Data: out}
}

// MulScalar returns a * s elementwise.
func (a *Array) MulScalar(s float64) *Array {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = v * s
	}
	return &Array{Shape: append([]int(nil), a.Shape...), Data: out}
}

// Mul returns the elementwise product of two equally shaped arrays.
func Mul(a, b *Array) (*Array, error) {
	if !sameShape(a.Shape, b.Shape) {
		return nil, &ShapeError{Op: "mul", A: a.Shape, B: b.Shape}
	}
	out := make([]float64, len(a.Data))
	for i := range a.Data {
		out[i] = a.Data[i] * b.Data[i]
	}
	return &Array{Shape: append([]int(nil), a.Shape...), Data: out}, nil
}

// Prod returns the elementwise product of the given arrays. All arrays must
// share a shape. Returns nil for an empty input.
func Prod(arrays []*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, nil
	}
	acc := arrays[0].Clone()
	for _, a := range arrays[1:] {
		p, err := Mul(acc, a)
		if err != nil {
			return nil, err
		}
		acc = p
	}
	return acc, nil
}

// MeanStack returns the elementwise mean across equally shaped arrays.
func MeanStack(arrays []*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, &ShapeError{Op: "mean-stack", A: nil}
	}
	acc := Zeros(arrays[0].Shape...)
	for _, a := range arrays {
		if !sameShape(a.Shape, acc.Shape) {
			return nil, &ShapeError{Op: "mean-stack", A: acc.Shape, B: a.Shape}
		}
		for i, v := range a.Data {
			acc.Data[i] += v
		}
	}
	n := float64(len(arrays))
	for i := range acc.Data {
		acc.Data[i] /= n
	}
	return acc, nil
}

// MeanAll returns the mean of all elements, NaN for the empty array.
func (a *Array) MeanAll() float64 {
	if len(a.Data) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range a.Data {
		sum += v
	}
	return sum / float64(len(a.Data))
}

// SumAll returns the sum of all elements.
func (a *Array) SumAll() float64 {
	sum := 0.0
	for _, v := range a.Data {
		sum += v
	}
	return sum
}

// MaxAll returns the maximum element, NaN for the empty array.
func (a *Array) MaxAll() float64 {
	if len(a.Data) == 0 {
		return math.NaN()
	}
	m := math.Inf(-1)
	for _, v := range a.Data {
		if v > m {
			m = v
		}
	}
	return m
}

// MinAll returns the minimum element, NaN for the empty array.
func (a *Array) MinAll() float64 {
	if len(a.Data) == 0 {
		return math.NaN()
	}
	m := math.Inf(1)
	for _, v := range a.Data {
		if v < m {
			m = v
		}
	}
	return m
}

// Log returns the natural log applied elementwise.
func (a *Array) Log() *Array {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = math.Log(v)
	}
	return &Array{Shape: append([]int(nil), a.Shape...), Data: out}
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
