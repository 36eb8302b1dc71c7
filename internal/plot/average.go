package plot

import (
	"fmt"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// Averager accumulates normalized Y series across a repeat group of runs
// and renders their elementwise mean. Each run's norm is rescaled by its
// own mean before dividing, so runs with different beam currents weight
// equally. Accumulation resets when a run arrives with repeat index 0 and
// the group is complete at index len-1.
type Averager struct {
	size int
	seen int
	done bool

	xKey    string
	x       *ndarray.Array
	y       map[string][]*ndarray.Array
	images  map[string][]*ndarray.Array
	imageY  *ndarray.Array
	norms   []*ndarray.Array
	yKeys   []string
	imgKeys []string
}

// NewAverager returns an empty accumulator.
func NewAverager() *Averager {
	return &Averager{
		y:      map[string][]*ndarray.Array{},
		images: map[string][]*ndarray.Array{},
	}
}

// Size returns the declared group length, 0 before the first run.
func (a *Averager) Size() int { return a.size }

// Count returns how many runs have been accumulated.
func (a *Averager) Count() int { return a.seen }

// Complete reports whether the last run of the group has arrived.
func (a *Averager) Complete() bool { return a.done }

// Add folds one completed run into the group. Runs without repeat
// metadata are rejected; an index-0 run resets the accumulator. The x, y,
// image, and normalization keys come from the run's plot hints (x, y,
// image, image_y, normalization groups).
func (a *Averager) Add(run *catalog.Run) error {
	rep, ok := run.Repeat()
	if !ok {
		return fmt.Errorf("plot: run %s has no repeat metadata", run.UID())
	}
	if rep.Index == 0 {
		a.reset(rep.Len)
	}

	hints := run.PlotHints()
	xKeys := hints.Fields("x")
	if len(xKeys) == 0 {
		xKeys = motorKeys(run)
	}
	if len(xKeys) == 0 {
		xKeys = []string{"time"}
	}
	a.xKey = xKeys[0]
	x, err := run.Data(a.xKey)
	if err != nil {
		return fmt.Errorf("plot: average x %s: %w", a.xKey, err)
	}
	a.x = x

	norm, err := a.scaledNorm(run, hints.Fields("normalization"))
	if err != nil {
		return err
	}
	a.norms = append(a.norms, norm)

	a.yKeys = hints.Fields("y")
	if len(a.yKeys) == 0 {
		a.yKeys = hints.Fields("primary")
	}
	for _, key := range a.yKeys {
		arr, err := run.Data(key)
		if err != nil {
			return fmt.Errorf("plot: average y %s: %w", key, err)
		}
		a.y[key] = append(a.y[key], arr)
	}

	a.imgKeys = hints.Fields("image")
	for _, key := range a.imgKeys {
		arr, err := run.Data(key)
		if err != nil {
			return fmt.Errorf("plot: average image %s: %w", key, err)
		}
		a.images[key] = append(a.images[key], arr)
	}
	if axKeys := hints.Fields("image_y"); len(axKeys) > 0 {
		if ax, err := run.Data(axKeys[0]); err == nil {
			a.imageY = ax
		}
	}

	a.seen++
	a.done = rep.Index == rep.Len-1
	return nil
}

// motorKeys returns the scanned motor names declared in start metadata,
// the x fallback for runs whose plot hints carry no x group.
func motorKeys(run *catalog.Run) []string {
	raw, _ := run.Start()["motors"].([]any)
	var keys []string
	for _, m := range raw {
		if s, ok := m.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// scaledNorm returns norm/mean(norm) for the run, or nil when the run
// hints no normalization key.
func (a *Averager) scaledNorm(run *catalog.Run, normKeys []string) (*ndarray.Array, error) {
	if len(normKeys) == 0 {
		return nil, nil
	}
	raw, err := run.Data(normKeys[0])
	if err != nil {
		return nil, fmt.Errorf("plot: average norm %s: %w", normKeys[0], err)
	}
	mean := raw.MeanAll()
	if mean == 0 {
		return nil, fmt.Errorf("plot: norm %s has zero mean", normKeys[0])
	}
	return raw.DivScalar(mean), nil
}

// Series renders the group mean: per y key, each run's y divided by its
// scaled norm, averaged elementwise across the runs seen so far. Image
// keys average the same way and plot against the hinted image_y axis, or
// a synthetic index axis when none is hinted.
func (a *Averager) Series() ([]Series, error) {
	if a.seen == 0 {
		return nil, nil
	}
	var out []Series
	for _, key := range a.yKeys {
		mean, err := a.meanOf(a.y[key])
		if err != nil {
			return nil, fmt.Errorf("plot: average %s: %w", key, err)
		}
		out = append(out, Series{
			X:     []*ndarray.Array{a.x},
			XKeys: []string{a.xKey},
			Y:     mean,
			YKey:  key,
			Label: fmt.Sprintf("%s mean of %d", key, a.seen),
		})
	}
	for _, key := range a.imgKeys {
		mean, err := a.meanOf(a.images[key])
		if err != nil {
			return nil, fmt.Errorf("plot: average %s: %w", key, err)
		}
		axis := a.imageY
		axisKey := "image_y"
		if axis == nil && mean.Rank() > 1 {
			axis = ndarray.Arange(mean.Shape[mean.Rank()-1])
			axisKey = fmt.Sprintf("Dimension %d", mean.Rank()-1)
		}
		out = append(out, Series{
			X:     []*ndarray.Array{a.x, axis},
			XKeys: []string{a.xKey, axisKey},
			Y:     mean,
			YKey:  key,
			Label: fmt.Sprintf("%s mean of %d", key, a.seen),
		})
	}
	return out, nil
}

// meanOf normalizes each accumulated array by its run's scaled norm and
// averages the stack.
func (a *Averager) meanOf(arrays []*ndarray.Array) (*ndarray.Array, error) {
	normalized := make([]*ndarray.Array, len(arrays))
	for i, arr := range arrays {
		if i < len(a.norms) && a.norms[i] != nil {
			div, err := ndarray.DivBroadcast(arr, a.norms[i])
			if err != nil {
				return nil, err
			}
			normalized[i] = div
		} else {
			normalized[i] = arr
		}
	}
	return ndarray.MeanStack(normalized)
}

func (a *Averager) reset(size int) {
	a.size = size
	a.seen = 0
	a.done = false
	a.x = nil
	a.imageY = nil
	a.y = map[string][]*ndarray.Array{}
	a.images = map[string][]*ndarray.Array{}
	a.norms = nil
	a.yKeys = nil
	a.imgKeys = nil
}
