package chartdata

// Sample is one chart point: T is the timestamp in epoch milliseconds (UTC),
// V is the metric value.
type Sample struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

// Sequence is a chronologically ordered list of samples for one metric.
// Ordering is a caller invariant; the pipeline relies on index adjacency
// and never re-sorts.
type Sequence []Sample

// Series pairs a sequence with display metadata. The numeric pipeline never
// looks at Name or Color; they ride along for the renderer.
type Series struct {
	Name   string   `json:"name"`
	Color  string   `json:"color,omitempty"`
	Points Sequence `json:"points"`
}
