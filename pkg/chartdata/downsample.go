package chartdata

import "math"

// Downsample reduces a sequence to at most threshold points using
// largest-triangle-three-buckets (https://skemman.is/handle/1946/15343).
//
// The first and last input points are always kept verbatim; the interior is
// partitioned into threshold-2 fractional-boundary buckets, and each bucket
// keeps the point forming the largest triangle with the previously selected
// point and the next bucket's centroid. That is the point whose removal
// would change the drawn shape the most, so spikes survive reduction.
//
// If the sequence already fits the budget, or threshold < 3 (the algorithm
// is undefined below three output points), the input is returned unchanged.
func Downsample(seq Sequence, threshold int) Sequence {
	n := len(seq)
	if threshold < 3 || n <= threshold {
		return seq
	}

	out := make(Sequence, 0, threshold)
	out = append(out, seq[0])

	// Fractional bucket width over the interior points.
	size := float64(n-2) / float64(threshold-2)

	a := seq[0] // previously selected point
	for i := 0; i < threshold-2; i++ {
		lo := int(float64(i)*size) + 1
		hi := int(float64(i+1)*size) + 1
		if i == threshold-3 {
			// last bucket runs to the final interior point regardless of
			// float truncation
			hi = n - 1
		}

		cx, cy := nextCentroid(seq, i, size)

		// Keep the candidate with the strictly largest triangle area; ties
		// keep the first one encountered.
		best := lo
		largest := -1.0
		for j := lo; j < hi; j++ {
			area := math.Abs((a.T-cx)*(seq[j].V-a.V) - (a.T-seq[j].T)*(cy-a.V))
			if area > largest {
				largest = area
				best = j
			}
		}

		a = seq[best]
		out = append(out, a)
	}

	return append(out, seq[n-1])
}

// nextCentroid returns the average point of bucket i+1, falling back to the
// fixed last point when there is no next bucket.
func nextCentroid(seq Sequence, i int, size float64) (cx, cy float64) {
	n := len(seq)
	lo := int(float64(i+1)*size) + 1
	hi := int(float64(i+2)*size) + 1
	if hi > n-1 {
		hi = n - 1
	}
	if lo >= hi {
		return seq[n-1].T, seq[n-1].V
	}

	for _, p := range seq[lo:hi] {
		cx += p.T
		cy += p.V
	}
	m := float64(hi - lo)
	return cx / m, cy / m
}
