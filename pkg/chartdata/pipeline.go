package chartdata

// ReduceOptions are the caller-tunable knobs of the pipeline.
type ReduceOptions struct {
	// Smoothing is the EMA attenuation factor in [0,1]; 0 disables smoothing.
	Smoothing float64

	// MaxPoints is the downsampling budget; below 3 no reduction is applied.
	MaxPoints int

	// AxisFloor is a lower bound on the axis ceiling; 0 means none.
	AxisFloor float64
}

// Reduce runs the pipeline over one sequence: optional smoothing, then LTTB
// reduction. The axis ceiling is computed from the smoothed full-resolution
// sequence, independently of the downsampler, so the reported range never
// depends on which points the reduction happened to keep.
//
// The boolean mirrors AxisMax: false means the axis is unspecified and the
// renderer should auto-scale.
func Reduce(seq Sequence, opts ReduceOptions) (Sequence, float64, bool) {
	if opts.Smoothing > 0 {
		seq = Smooth(seq, opts.Smoothing)
	}
	axis, ok := AxisMax(seq, opts.AxisFloor)
	return Downsample(seq, opts.MaxPoints), axis, ok
}
