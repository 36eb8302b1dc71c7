package catalog

// FieldRef is one entry of a plot-hint group. Hints name signals either as a
// bare key or as a structured reference {"signal": key, "axes": [...]} where
// the signal itself may be a list (the last element is the key).
type FieldRef struct {
	Signal string
	Axes   []string
}

// PlotHints maps a hint group (primary, normalization, x, y, image, ...) to
// its ordered field references.
type PlotHints map[string][]FieldRef

// ParsePlotHints converts the raw start-document plot_hints mapping into a
// typed PlotHints. Unrecognized entry shapes are dropped.
func ParsePlotHints(raw any) PlotHints {
	m, ok := raw.(map[string]any)
	if !ok {
		return PlotHints{}
	}
	hints := make(PlotHints, len(m))
	for group, v := range m {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		refs := make([]FieldRef, 0, len(list))
		for _, entry := range list {
			if ref, ok := parseFieldRef(entry); ok {
				refs = append(refs, ref)
			}
		}
		hints[group] = refs
	}
	return hints
}

func parseFieldRef(entry any) (FieldRef, bool) {
	switch e := entry.(type) {
	case string:
		return FieldRef{Signal: e}, true
	case map[string]any:
		sig, ok := lastSignal(e["signal"])
		if !ok {
			return FieldRef{}, false
		}
		ref := FieldRef{Signal: sig}
		if axes, ok := e["axes"].([]any); ok {
			for _, ax := range axes {
				if s, ok := lastSignal(ax); ok {
					ref.Axes = append(ref.Axes, s)
				}
			}
		}
		return ref, true
	}
	return FieldRef{}, false
}

// lastSignal extracts a bare key from a signal reference that may be a
// string or a list of strings (the last element names the signal).
func lastSignal(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []any:
		if len(s) == 0 {
			return "", false
		}
		return lastSignal(s[len(s)-1])
	}
	return "", false
}

// Fields returns the flattened signal keys of one hint group.
func (h PlotHints) Fields(group string) []string {
	return FlattenFields(h[group])
}

// Flatten returns the flattened signal keys of every group.
func (h PlotHints) Flatten() []string {
	var all []string
	for _, refs := range h {
		all = append(all, FlattenFields(refs)...)
	}
	return all
}

// AxisHints returns, per hinted signal, the ordered list of extra axis keys
// declared for it. Signals without an axes declaration do not appear.
func (h PlotHints) AxisHints() map[string][]string {
	out := map[string][]string{}
	for _, refs := range h {
		for _, ref := range refs {
			if len(ref.Axes) > 0 {
				out[ref.Signal] = ref.Axes
			}
		}
	}
	return out
}

// FlattenFields extracts the bare signal keys from a list of field refs.
func FlattenFields(refs []FieldRef) []string {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, ref.Signal)
	}
	return keys
}
