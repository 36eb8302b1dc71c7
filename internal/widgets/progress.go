package widgets

import (
	"fmt"
)

var progressEighths = []rune("▏▎▍▌▋▊▉█")

// Progress renders an acquisition bar with a point-count suffix, e.g.
// "acq ▕██▋     ▏ 33/120". A run with no declared target (want <= 0)
// renders an indeterminate track with the raw buffered count, and a run
// whose buffer has reached the target reads "done".
func Progress(prefix string, have, want, width int) string {
	if width <= 0 {
		return ""
	}
	if have < 0 {
		have = 0
	}
	if want > 0 && have > want {
		have = want
	}

	var suffix string
	switch {
	case want <= 0:
		suffix = fmt.Sprintf(" %d pts", have)
	case have == want:
		suffix = " done"
	default:
		suffix = fmt.Sprintf(" %d/%d", have, want)
	}

	head := prefix + " ▕"
	barW := width - len([]rune(head)) - 1 - len([]rune(suffix))
	if barW <= 0 {
		r := []rune(prefix + suffix)
		if len(r) > width {
			r = r[:width]
		}
		return string(r)
	}

	cells := make([]rune, barW)
	units := 0
	if want > 0 {
		units = have * barW * 8 / want
	}
	for i := range cells {
		switch {
		case want <= 0:
			cells[i] = '░'
		case units >= 8:
			cells[i] = '█'
			units -= 8
		case units > 0:
			cells[i] = progressEighths[units-1]
			units = 0
		default:
			cells[i] = ' '
		}
	}
	return head + string(cells) + "▏" + suffix
}
