package chartdata

import "math"

// axisHeadroom keeps the plotted line off the top axis edge.
const axisHeadroom = 1.1

// AxisMax computes a stable Y-axis ceiling for one sequence: the maximum
// value padded by 10% and rounded up to a multiple of the largest power of
// ten at or below it (113.7 → 130, 8.2 → 10). Rounding to coarse steps is
// what keeps the axis from visibly jittering between refresh cycles.
//
// floor, when non-zero, is a lower bound on the result. A percentage chart
// can demand the axis never collapse below 100.
//
// The second return value is false ("unspecified") when the sequence is
// empty or its maximum is not positive; the caller should fall back to
// renderer auto-scaling rather than force a degenerate axis.
func AxisMax(seq Sequence, floor float64) (float64, bool) {
	return axisCeiling(peak(seq), floor)
}

// AxisMaxAll computes one shared ceiling over several sequences so multiple
// lines on the same chart use a consistent scale.
func AxisMaxAll(seqs []Sequence, floor float64) (float64, bool) {
	var max float64
	for _, seq := range seqs {
		if p := peak(seq); p > max {
			max = p
		}
	}
	return axisCeiling(max, floor)
}

func axisCeiling(max, floor float64) (float64, bool) {
	if math.IsNaN(max) || max <= 0 {
		return 0, false
	}

	padded := max * axisHeadroom
	magnitude := math.Pow(10, math.Floor(math.Log10(padded)))
	nice := math.Ceil(padded/magnitude) * magnitude

	if nice < floor {
		nice = floor
	}
	return nice, true
}

// peak returns the largest positive value in the sequence, 0 otherwise.
// NaN values are skipped so one bad sample cannot poison the axis.
func peak(seq Sequence) float64 {
	var max float64
	for _, p := range seq {
		if p.V > max {
			max = p.V
		}
	}
	return max
}
