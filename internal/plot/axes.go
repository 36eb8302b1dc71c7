// Package plot turns a run's raw signals into renderable series: it resolves
// which signals play the X, Y, and normalization roles, normalizes and
// transforms the data, reorders dimensions per axis hints, reshapes
// partially-acquired buffers, and averages repeated runs.
package plot

import (
	"sort"

	"github.com/xraygui/nbs-viewer-sub001/internal/catalog"
)

// RunKeys holds the resolved axis candidates of one run. X maps a dimension
// role to its signal keys: role 0 is time, roles 1..n follow the hinted
// motor dimensions in order. Y maps candidate class 1 (scalar-like) and
// 2 (image-like) to the leftover signals.
type RunKeys struct {
	X map[int][]string
	Y map[int][]string
}

// ResolveRunKeys partitions a run's signals into axis roles. Signals are
// split by rank; "time" claims role 0, each hinted motor dimension claims
// the next role, and whatever remains becomes Y candidates. Hinted keys
// absent from the signal set are dropped, and a dimension none of whose
// keys exist claims no role at all.
func ResolveRunKeys(shapes map[string][]int, dims [][]string) RunKeys {
	var keys1d, keysnd []string
	for _, key := range sortedShapeKeys(shapes) {
		switch {
		case len(shapes[key]) == 1:
			keys1d = append(keys1d, key)
		case len(shapes[key]) > 1:
			keysnd = append(keysnd, key)
		}
	}

	rk := RunKeys{X: map[int][]string{}, Y: map[int][]string{}}
	if idx := indexOf(keys1d, "time"); idx >= 0 {
		rk.X[0] = []string{"time"}
		keys1d = append(keys1d[:idx], keys1d[idx+1:]...)
	}
	for i, axlist := range dims {
		var claimed []string
		for _, ax := range axlist {
			if idx := indexOf(keys1d, ax); idx >= 0 {
				keys1d = append(keys1d[:idx], keys1d[idx+1:]...)
				claimed = append(claimed, ax)
			}
		}
		if len(claimed) > 0 {
			rk.X[i+1] = claimed
		}
	}
	rk.Y[1] = keys1d
	rk.Y[2] = keysnd
	return rk
}

// FilterHinted narrows Y candidates to keys named anywhere in the plot
// hints. A run without hints keeps every candidate.
func FilterHinted(hints catalog.PlotHints, ykeys map[int][]string) map[int][]string {
	if len(hints) == 0 {
		return ykeys
	}
	hinted := map[string]bool{}
	for _, key := range hints.Flatten() {
		hinted[key] = true
	}
	filtered := map[int][]string{}
	for role, keys := range ykeys {
		kept := []string{}
		for _, key := range keys {
			if hinted[key] {
				kept = append(kept, key)
			}
		}
		filtered[role] = kept
	}
	return filtered
}

// DefaultChecked derives the initial checked keys. With motor roles
// present, every non-time role contributes its first key so multi-axis
// scans plot against all scanned motors; otherwise time alone is X.
// Default Y is the flattened primary hint, default norm the flattened
// normalization hint, each dropping keys the run does not carry.
func DefaultChecked(rk RunKeys, hints catalog.PlotHints, shapes map[string][]int) (x, y, norm []string) {
	roles := make([]int, 0, len(rk.X))
	for role := range rk.X {
		roles = append(roles, role)
	}
	sort.Ints(roles)

	if len(roles) > 0 && roles[len(roles)-1] > 0 {
		for _, role := range roles {
			if role != 0 && len(rk.X[role]) > 0 {
				x = append(x, rk.X[role][0])
			}
		}
	} else if keys, ok := rk.X[0]; ok && len(keys) > 0 {
		x = []string{keys[0]}
	}

	y = presentKeys(hints.Fields("primary"), shapes)
	norm = presentKeys(hints.Fields("normalization"), shapes)
	return x, y, norm
}

func presentKeys(keys []string, shapes map[string][]int) []string {
	out := []string{}
	for _, key := range keys {
		if _, ok := shapes[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

func sortedShapeKeys(shapes map[string][]int) []string {
	keys := make([]string, 0, len(shapes))
	for key := range shapes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
