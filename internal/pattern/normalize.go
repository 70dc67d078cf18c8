package pattern

import "math"

const (
	samplesPerSegment = 256
	minSamples        = 2048
)

// computeConstant returns 1/mean of the raw multiplier, sampled at evenly
// spaced midpoints across one cycle.
func computeConstant(segments []segment, durationMillis float64) (float64, error) {
	n := len(segments) * samplesPerSegment
	if n < minSamples {
		n = minSamples
	}
	step := durationMillis / float64(n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += rawAt(segments, (float64(i)+0.5)*step)
	}
	mean := sum / float64(n)
	if !(mean > 0) || math.IsInf(mean, 0) {
		return 0, ErrNonPositiveMean
	}
	return 1 / mean, nil
}

func rawAt(segments []segment, patternMillis float64) float64 {
	s := lookup(segments, patternMillis)
	if s == nil {
		return 0
	}
	return s.valueAt(patternMillis)
}
