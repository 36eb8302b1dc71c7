package plot

import (
	"fmt"
	"strings"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// Series is one renderable curve or image: the x arrays in plotting order,
// the transformed y array, and the keys labeling each axis.
type Series struct {
	X     []*ndarray.Array
	XKeys []string
	Y     *ndarray.Array
	YKey  string
	Label string
}

type cacheEntry struct {
	xlist []*ndarray.Array
	ylist []*ndarray.Array
	norms []*ndarray.Array
}

// Engine is the per-run plot-data pipeline. It resolves checked keys to
// arrays, normalizes, applies the user transform, and reorders dimensions
// per the run's axis hints. Pre-transform arrays are cached per key tuple;
// the cache is bypassed while dynamic mode is on because a live run's
// buffers keep growing. The engine is mutated only from the consumer
// goroutine, like the table model.
type Engine struct {
	run     *catalog.Run
	hints   catalog.PlotHints
	axHints map[string][]string
	runKeys RunKeys

	checkedX    []string
	checkedY    []string
	checkedNorm []string
	transform   *Transform

	dynamic  bool
	expected int

	cache map[string]cacheEntry
}

// NewEngine builds an engine for one run and applies the default checked
// state from its hints.
func NewEngine(run *catalog.Run) *Engine {
	hints := run.PlotHints()
	e := &Engine{
		run:      run,
		hints:    hints,
		axHints:  hints.AxisHints(),
		runKeys:  ResolveRunKeys(run.SignalShapes(), run.Dimensions()),
		expected: run.NumPoints(),
		cache:    map[string]cacheEntry{},
	}
	e.checkedX, e.checkedY, e.checkedNorm = DefaultChecked(e.runKeys, hints, run.SignalShapes())
	e.dynamic = run.Live()
	return e
}

// Run returns the engine's run.
func (e *Engine) Run() *catalog.Run { return e.run }

// Keys returns the resolved axis roles.
func (e *Engine) Keys() RunKeys { return e.runKeys }

// HintedY returns the Y candidates narrowed to hinted keys.
func (e *Engine) HintedY() map[int][]string {
	return FilterHinted(e.hints, e.runKeys.Y)
}

// Checked returns the current checked x, y, and norm keys.
func (e *Engine) Checked() (x, y, norm []string) {
	return e.checkedX, e.checkedY, e.checkedNorm
}

// SetChecked replaces the checked key state.
func (e *Engine) SetChecked(x, y, norm []string) {
	e.checkedX = x
	e.checkedY = y
	e.checkedNorm = norm
}

// SetTransform parses and installs a user transform expression. A bad
// expression is rejected with *TransformError and the previous transform
// stays in place; an empty expression clears it.
func (e *Engine) SetTransform(expr string) error {
	t, err := ParseTransform(expr)
	if err != nil {
		return err
	}
	e.transform = t
	return nil
}

// TransformText returns the current transform expression, if any.
func (e *Engine) TransformText() string {
	if e.transform == nil {
		return ""
	}
	return e.transform.Text()
}

// Dynamic reports whether the engine re-reads data on every request.
func (e *Engine) Dynamic() bool { return e.dynamic }

// SetDynamic toggles live re-reading. Any toggle invalidates the cache so
// stale prefixes never outlive the mode change.
func (e *Engine) SetDynamic(enabled bool) {
	if enabled != e.dynamic {
		e.cache = map[string]cacheEntry{}
	}
	e.dynamic = enabled
}

// Plot runs the pipeline for the currently checked keys.
func (e *Engine) Plot() ([]Series, error) {
	return e.PlotData(e.checkedX, e.checkedY, e.checkedNorm)
}

// PlotData resolves the named keys to arrays and produces one Series per
// y key. The normalization array is the elementwise product of the norm
// arrays (scalar 1 when none) and divides y by appending trailing
// singleton dims. A failed transform surfaces as *TransformError with no
// series; shape failures abort only this request and never poison the
// cache for other key tuples.
func (e *Engine) PlotData(xkeys, ykeys, normkeys []string) ([]Series, error) {
	if len(xkeys) == 0 || len(ykeys) == 0 {
		return nil, nil
	}
	ent, err := e.checkedData(xkeys, ykeys, normkeys)
	if err != nil {
		return nil, err
	}

	var norm *ndarray.Array
	if len(ent.norms) > 0 {
		norm, err = ndarray.Prod(ent.norms)
		if err != nil {
			return nil, fmt.Errorf("plot: norm product: %w", err)
		}
	}

	series := make([]Series, 0, len(ykeys))
	for i, key := range ykeys {
		y := ent.ylist[i]
		if norm != nil {
			y, err = ndarray.DivBroadcast(y, norm)
			if err != nil {
				return nil, fmt.Errorf("plot: normalize %s: %w", key, err)
			}
		}
		if e.transform != nil {
			y, err = e.transform.Eval(Env{X: ent.xlist, Y: y, Norm: norm})
			if err != nil {
				return nil, err
			}
		}
		s, err := e.reorderDimensions(key, xkeys, ent.xlist, y)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, nil
}

// checkedData fetches and shapes the raw arrays for one key tuple. In
// dynamic mode all arrays are first trimmed to the shortest outer length
// so unevenly filled live buffers line up, and the cache is bypassed.
func (e *Engine) checkedData(xkeys, ykeys, normkeys []string) (cacheEntry, error) {
	key := cacheKey(xkeys, ykeys, normkeys)
	if !e.dynamic {
		if ent, ok := e.cache[key]; ok {
			return ent, nil
		}
	}

	xlist, err := e.fetch(xkeys)
	if err != nil {
		return cacheEntry{}, err
	}
	ylist, err := e.fetch(ykeys)
	if err != nil {
		return cacheEntry{}, err
	}
	norms, err := e.fetch(normkeys)
	if err != nil {
		return cacheEntry{}, err
	}

	if e.dynamic {
		min := minOuter(xlist)
		if m := minOuter(ylist); m < min {
			min = m
		}
		if len(norms) > 0 {
			if m := minOuter(norms); m < min {
				min = m
			}
		}
		xlist = trimOuter(xlist, min)
		ylist = trimOuter(ylist, min)
		norms = trimOuter(norms, min)
		if e.expected > 0 && min >= e.expected {
			e.dynamic = false
		}
	}

	target := e.run.TargetShape()
	if xlist, err = reshapeAll(xlist, target); err != nil {
		return cacheEntry{}, err
	}
	if ylist, err = reshapeAll(ylist, target); err != nil {
		return cacheEntry{}, err
	}
	if norms, err = reshapeAll(norms, target); err != nil {
		return cacheEntry{}, err
	}

	ent := cacheEntry{xlist: xlist, ylist: ylist, norms: norms}
	if !e.dynamic {
		e.cache[key] = ent
	}
	return ent, nil
}

// reorderDimensions pads and reorders a y array whose rank exceeds the
// supplied x axes. Hinted extra axes come from the run; any still-uncovered
// trailing dimension gets a synthetic index axis labeled "Dimension {n}".
// A single added axis is inserted second-to-last and y's last two axes are
// swapped, so a detector's native axis becomes the innermost plotted axis;
// multiple additions are appended as-is.
func (e *Engine) reorderDimensions(key string, xkeys []string, xlist []*ndarray.Array, y *ndarray.Array) (Series, error) {
	var additions []*ndarray.Array
	var additionKeys []string
	for _, axKey := range e.axHints[key] {
		arr, err := e.run.Data(axKey)
		if err != nil {
			return Series{}, fmt.Errorf("plot: axis hint %s for %s: %w", axKey, key, err)
		}
		additions = append(additions, arr)
		additionKeys = append(additionKeys, axKey)
	}

	for n := len(xlist) + len(additions); n < y.Rank(); n++ {
		additions = append(additions, ndarray.Arange(y.Shape[n]))
		additionKeys = append(additionKeys, fmt.Sprintf("Dimension %d", n))
	}

	s := Series{YKey: key, Label: fmt.Sprintf("%s.%d", key, e.run.ScanID())}
	if len(additions) == 1 {
		s.X = append(append(append([]*ndarray.Array{}, xlist[:len(xlist)-1]...), additions[0]), xlist[len(xlist)-1])
		s.XKeys = append(append(append([]string{}, xkeys[:len(xkeys)-1]...), additionKeys[0]), xkeys[len(xkeys)-1])
		s.Y = y.SwapLastAxes()
	} else {
		s.X = append(append([]*ndarray.Array{}, xlist...), additions...)
		s.XKeys = append(append([]string{}, xkeys...), additionKeys...)
		s.Y = y
	}
	return s, nil
}

func (e *Engine) fetch(keys []string) ([]*ndarray.Array, error) {
	arrays := make([]*ndarray.Array, 0, len(keys))
	for _, key := range keys {
		arr, err := e.run.Data(key)
		if err != nil {
			return nil, fmt.Errorf("plot: fetch %s: %w", key, err)
		}
		arrays = append(arrays, arr)
	}
	return arrays, nil
}

func cacheKey(xkeys, ykeys, normkeys []string) string {
	return strings.Join(xkeys, ",") + "|" + strings.Join(ykeys, ",") + "|" + strings.Join(normkeys, ",")
}

func minOuter(arrays []*ndarray.Array) int {
	min := 0
	for i, a := range arrays {
		if i == 0 || a.Outer() < min {
			min = a.Outer()
		}
	}
	return min
}

func trimOuter(arrays []*ndarray.Array, n int) []*ndarray.Array {
	out := make([]*ndarray.Array, len(arrays))
	for i, a := range arrays {
		trimmed, err := a.SliceOuter(n)
		if err != nil {
			trimmed = a
		}
		out[i] = trimmed
	}
	return out
}

func reshapeAll(arrays []*ndarray.Array, target []int) ([]*ndarray.Array, error) {
	out := make([]*ndarray.Array, len(arrays))
	for i, a := range arrays {
		r, err := ReshapeTruncated(a, target)
		if err != nil {
			return nil, fmt.Errorf("plot: reshape: %w", err)
		}
		out[i] = r
	}
	return out, nil
}
