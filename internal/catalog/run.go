// Package catalog models experiment runs and the catalogs that contain them.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
	"github.com/xraygui/nbs-viewer-sub001/internal/transport"
)

// Columns are the display columns every catalog row exposes, in order.
var Columns = []string{"Scan ID", "UID", "Time", "Plan", "Sample", "Points"}

// RepeatMeta is the repeat-group block carried in start metadata for runs
// that are repeated measurements of the same condition.
type RepeatMeta struct {
	Index int
	Len   int
}

// Run is one experiment acquisition: a named bundle of signals plus
// metadata. While live it is mutated as documents stream in; a stop
// document freezes it.
type Run struct {
	uid    string
	scanID int

	start map[string]any
	stop  map[string]any

	numPoints int

	// descriptor uid -> stream name; only "primary" events are buffered.
	descriptors map[string]string

	signals map[string]*signalBuffer
	keys    []string
}

// signalBuffer accumulates one sample per event. sampleShape is the shape
// of a single sample ([] for scalars), fixed by the first event.
type signalBuffer struct {
	sampleShape []int
	data        []float64
	n           int
}

// NewRun creates a run from a start document. A missing uid is generated so
// the run stays addressable.
func NewRun(start map[string]any) *Run {
	uid, _ := start["uid"].(string)
	if uid == "" {
		uid = uuid.NewString()
	}
	r := &Run{
		uid:         uid,
		scanID:      intField(start, "scan_id"),
		start:       start,
		numPoints:   intField(start, "num_points"),
		descriptors: map[string]string{},
		signals:     map[string]*signalBuffer{},
	}
	return r
}

// UID returns the stable unique identity of the run.
func (r *Run) UID() string { return r.uid }

// ScanID returns the integer display key.
func (r *Run) ScanID() int { return r.scanID }

// Start returns the start metadata mapping.
func (r *Run) Start() map[string]any { return r.start }

// Stop returns the stop metadata mapping, nil while the run is live.
func (r *Run) Stop() map[string]any { return r.stop }

// NumPoints returns the declared number of acquisition points, 0 if unknown.
func (r *Run) NumPoints() int { return r.numPoints }

// Live reports whether the run is still being acquired.
func (r *Run) Live() bool {
	if r.stop != nil {
		return false
	}
	if r.numPoints > 0 {
		for _, buf := range r.signals {
			if buf.n >= r.numPoints {
				return false
			}
		}
	}
	return true
}

// PlotHints returns the declarative plot hints from start metadata.
func (r *Run) PlotHints() PlotHints {
	return ParsePlotHints(r.start["plot_hints"])
}

// Dimensions returns the declared motor/axis dimension hints from
// start.hints.dimensions: an ordered list where each entry names the 1-D
// signals of one scanned dimension.
func (r *Run) Dimensions() [][]string {
	hints, _ := r.start["hints"].(map[string]any)
	raw, _ := hints["dimensions"].([]any)
	var dims [][]string
	for _, d := range raw {
		// Each dimension is [axis-key-list, stream-name].
		pair, ok := d.([]any)
		if !ok || len(pair) == 0 {
			continue
		}
		axlist, ok := pair[0].([]any)
		if !ok {
			continue
		}
		var axes []string
		for _, ax := range axlist {
			if s, ok := ax.(string); ok {
				axes = append(axes, s)
			}
		}
		dims = append(dims, axes)
	}
	return dims
}

// Repeat returns the repeat-group metadata, if any.
func (r *Run) Repeat() (RepeatMeta, bool) {
	m, ok := r.start["repeat"].(map[string]any)
	if !ok {
		return RepeatMeta{}, false
	}
	return RepeatMeta{Index: intValue(m["index"]), Len: intValue(m["len"])}, true
}

// TargetShape returns the run's eventual multi-dimensional shape: the
// declared scan shape if present, else (num_points,).
func (r *Run) TargetShape() []int {
	if raw, ok := r.start["shape"].([]any); ok && len(raw) > 0 {
		shape := make([]int, 0, len(raw))
		for _, v := range raw {
			shape = append(shape, intValue(v))
		}
		return shape
	}
	if r.numPoints > 0 {
		return []int{r.numPoints}
	}
	return nil
}

// Keys returns the signal keys in insertion order.
func (r *Run) Keys() []string {
	return append([]string(nil), r.keys...)
}

// BufferedPoints returns how many events have actually been buffered so
// far, taken as the deepest signal. It trails NumPoints while a run is
// acquiring.
func (r *Run) BufferedPoints() int {
	n := 0
	for _, buf := range r.signals {
		if buf.n > n {
			n = buf.n
		}
	}
	return n
}

// SignalShapes returns the current shape of every buffered signal.
func (r *Run) SignalShapes() map[string][]int {
	out := make(map[string][]int, len(r.signals))
	for key, buf := range r.signals {
		out[key] = buf.shape()
	}
	return out
}

// Data returns a copy of the named signal as an array of shape
// (n, sampleShape...). Unknown keys return an empty rank-1 array.
func (r *Run) Data(key string) (*ndarray.Array, error) {
	buf, ok := r.signals[key]
	if !ok {
		return ndarray.FromSlice(nil), nil
	}
	arr, err := ndarray.New(append([]float64(nil), buf.data...), buf.shape()...)
	if err != nil {
		return nil, fmt.Errorf("catalog: signal %q: %w", key, err)
	}
	return arr, nil
}

// Process routes one document into the run. Events referencing unknown or
// non-primary descriptors are dropped; a stop document freezes the run.
func (r *Run) Process(name string, doc map[string]any) {
	switch name {
	case "descriptor":
		stream, _ := doc["name"].(string)
		if uid, ok := doc["uid"].(string); ok {
			r.descriptors[uid] = stream
		}
	case "event":
		r.processEvent(doc)
	case "event_page":
		r.processEventPage(doc)
	case "stop":
		r.stop = doc
	}
}

func (r *Run) processEvent(doc map[string]any) {
	if !r.primaryEvent(doc) {
		return
	}
	data, _ := doc["data"].(map[string]any)
	if _, ok := data["time"]; !ok {
		r.appendSample("time", doc["time"])
	}
	for _, key := range sortedKeys(data) {
		r.appendSample(key, data[key])
	}
}

func (r *Run) processEventPage(doc map[string]any) {
	if !r.primaryEvent(doc) {
		return
	}
	data, _ := doc["data"].(map[string]any)
	if _, ok := data["time"]; !ok {
		if times, ok := doc["time"].([]any); ok {
			for _, t := range times {
				r.appendSample("time", t)
			}
		}
	}
	for _, key := range sortedKeys(data) {
		values, ok := data[key].([]any)
		if !ok {
			continue
		}
		for _, v := range values {
			r.appendSample(key, v)
		}
	}
}

func (r *Run) primaryEvent(doc map[string]any) bool {
	uid, _ := doc["descriptor"].(string)
	stream, ok := r.descriptors[uid]
	return ok && stream == "primary"
}

// appendSample adds one sample to a signal buffer. Samples whose nesting
// disagrees with the buffer's established sample shape are dropped.
func (r *Run) appendSample(key string, value any) {
	flat, shape := flattenSample(value)
	buf, ok := r.signals[key]
	if !ok {
		buf = &signalBuffer{sampleShape: shape}
		r.signals[key] = buf
		r.keys = append(r.keys, key)
	}
	if !shapeEqual(buf.sampleShape, shape) {
		slog.Debug("catalog: dropping sample with mismatched shape",
			"run", r.uid, "key", key, "want", buf.sampleShape, "got", shape)
		return
	}
	buf.data = append(buf.data, flat...)
	buf.n++
}

// SetSignal installs a fully materialized signal, replacing any buffered
// samples. Used by archived catalog backends.
func (r *Run) SetSignal(key string, arr *ndarray.Array) {
	if _, ok := r.signals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	buf := &signalBuffer{data: append([]float64(nil), arr.Data...)}
	if arr.Rank() > 0 {
		buf.n = arr.Shape[0]
		buf.sampleShape = append([]int(nil), arr.Shape[1:]...)
	}
	r.signals[key] = buf
}

// SetStop installs a stop document. Used by archived catalog backends.
func (r *Run) SetStop(stop map[string]any) { r.stop = stop }

// Documents replays the run as the document sequence that would rebuild
// it: start, one synthetic primary descriptor, one event_page carrying the
// buffered signals, and the stop document when the run has one.
func (r *Run) Documents() []transport.Document {
	docs := []transport.Document{{Name: transport.NameStart, Doc: r.start}}
	descUID := r.uid + "-replay"
	docs = append(docs, transport.Document{Name: transport.NameDescriptor, Doc: map[string]any{
		"uid":       descUID,
		"name":      "primary",
		"run_start": r.uid,
	}})
	if data := r.pageData(); len(data) > 0 {
		docs = append(docs, transport.Document{Name: transport.NameEventPage, Doc: map[string]any{
			"descriptor": descUID,
			"data":       data,
		}})
	}
	if r.stop != nil {
		docs = append(docs, transport.Document{Name: transport.NameStop, Doc: r.stop})
	}
	return docs
}

// pageData lays each signal buffer out as the columnar lists an event_page
// carries, one entry per buffered sample.
func (r *Run) pageData() map[string]any {
	data := map[string]any{}
	for key, buf := range r.signals {
		if buf.n == 0 {
			continue
		}
		sampleLen := 1
		for _, d := range buf.sampleShape {
			sampleLen *= d
		}
		if sampleLen == 0 {
			continue
		}
		samples := make([]any, 0, buf.n)
		for i := 0; i < buf.n; i++ {
			samples = append(samples, sampleValue(buf.data[i*sampleLen:(i+1)*sampleLen], buf.sampleShape))
		}
		data[key] = samples
	}
	return data
}

// sampleValue is the inverse of flattenSample for one sample.
func sampleValue(flat []float64, shape []int) any {
	if len(shape) == 0 {
		return flat[0]
	}
	inner := 1
	for _, d := range shape[1:] {
		inner *= d
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i] = sampleValue(flat[i*inner:(i+1)*inner], shape[1:])
	}
	return out
}

// ToRow renders the run's display cells in Columns order.
func (r *Run) ToRow() []string {
	ts := "—"
	if t, ok := r.start["time"].(float64); ok {
		ts = time.Unix(int64(t), 0).Format("2006-01-02 15:04:05")
	}
	plan, _ := r.start["plan_name"].(string)
	sample, _ := r.start["sample_name"].(string)
	points := "—"
	if r.numPoints > 0 {
		points = fmt.Sprintf("%d", r.numPoints)
	}
	return []string{
		fmt.Sprintf("%d", r.scanID),
		r.uid,
		ts,
		plan,
		sample,
		points,
	}
}

func (b *signalBuffer) shape() []int {
	return append([]int{b.n}, b.sampleShape...)
}

// flattenSample flattens one (possibly nested) event value into float64s
// plus its shape. Non-numeric leaves flatten to a single zero sample.
func flattenSample(value any) ([]float64, []int) {
	switch v := value.(type) {
	case float64:
		return []float64{v}, nil
	case int:
		return []float64{float64(v)}, nil
	case int64:
		return []float64{float64(v)}, nil
	case bool:
		if v {
			return []float64{1}, nil
		}
		return []float64{0}, nil
	case []any:
		shape := []int{len(v)}
		var flat []float64
		var inner []int
		for i, item := range v {
			f, s := flattenSample(item)
			if i == 0 {
				inner = s
			}
			flat = append(flat, f...)
		}
		return flat, append(shape, inner...)
	default:
		return []float64{0}, nil
	}
}

func shapeEqual(a, b []int) bool {
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

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intField(m map[string]any, key string) int {
	return intValue(m[key])
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
