package plot

import (
	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// ReshapeTruncated rebuilds the fillable prefix of a partially-acquired
// signal. arr holds n samples along its outer axis (trailing axes are the
// per-sample shape) and target is the scan's declared point shape.
// Acquisition fills the target outer-to-inner, so only the outermost
// incomplete dimension may shrink: a dimension that cannot fit one full
// inner element collapses to 1, and the first insufficient inner dimension
// truncates to the remaining sample count. Samples beyond the reshapable
// prefix are discarded. Never panics, including for zero samples.
func ReshapeTruncated(arr *ndarray.Array, target []int) (*ndarray.Array, error) {
	if len(target) == 0 {
		return arr, nil
	}
	remaining := arr.Outer()
	shape := make([]int, len(target))
	copy(shape, target)

	for i := range shape {
		inner := 1
		for _, d := range shape[i+1:] {
			inner *= d
		}
		full := remaining
		if inner > 0 {
			full = remaining / inner
		}
		switch {
		case full >= 1 && full <= target[i]:
			shape[i] = full
		case full > target[i]:
			remaining -= target[i] * inner
			continue
		case i == len(shape)-1:
			shape[i] = remaining
		default:
			shape[i] = 1
			continue
		}
		break
	}

	points := 1
	for _, d := range shape {
		points *= d
	}
	prefix, err := arr.SliceOuter(points)
	if err != nil {
		return nil, err
	}
	return prefix.Reshape(append(shape, arr.Shape[1:]...)...)
}
