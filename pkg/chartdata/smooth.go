package chartdata

// Smooth attenuates high-frequency noise in a sequence with a dual-pass
// exponential moving average. alpha in [0,1] controls aggressiveness: 0 is a
// pass-through, values near 1 suppress heavily.
//
// The forward pass alone would lag behind sharp transitions, so the same
// recurrence is also run over the time-reversed sequence and the two passes
// are averaged, cancelling the lag in both directions.
//
// Sequences shorter than 3 points are returned unchanged. Timestamps are
// never modified; only values are filtered.
func Smooth(seq Sequence, alpha float64) Sequence {
	if len(seq) < 3 {
		return seq
	}

	forward := emaForward(seq, alpha)
	backward := emaBackward(seq, alpha)

	out := make(Sequence, len(seq))
	for i, p := range seq {
		out[i] = Sample{T: p.T, V: (forward[i] + backward[i]) / 2}
	}
	return out
}

// emaForward computes s[0] = p[0], s[i] = alpha*s[i-1] + (1-alpha)*p[i].
func emaForward(seq Sequence, alpha float64) []float64 {
	out := make([]float64, len(seq))
	out[0] = seq[0].V
	for i := 1; i < len(seq); i++ {
		out[i] = alpha*out[i-1] + (1-alpha)*seq[i].V
	}
	return out
}

// emaBackward is the identical recurrence applied from the far end, which is
// equivalent to reversing, filtering forward, and reversing back.
func emaBackward(seq Sequence, alpha float64) []float64 {
	n := len(seq)
	out := make([]float64, n)
	out[n-1] = seq[n-1].V
	for i := n - 2; i >= 0; i-- {
		out[i] = alpha*out[i+1] + (1-alpha)*seq[i].V
	}
	return out
}
