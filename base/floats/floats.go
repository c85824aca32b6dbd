package floats

import (
	"math"
)

func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func Mean(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	sum := 0.0
	for _, f := range fs {
		sum += f
	}
	return sum / float64(n)
}

// StdDev returns the population standard deviation of fs.
func StdDev(fs []float64) float64 {
	mean := Mean(fs)
	sumSq := 0.0
	for _, f := range fs {
		d := f - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(fs)))
}
