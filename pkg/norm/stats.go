// Package norm implements the two per-gene abundance normalisation stages:
// gene-length scaling and per-sample marker-gene scaling.
//
// Each stage takes a profile.Matrix and returns a freshly derived one; the
// input table is never rescaled in place.
package norm

import (
	"math"
	"sort"
)

// quantileR7 returns the pth quantile of v according to the R-7 method,
// leaving v unsorted.
// http://en.wikipedia.org/wiki/Quantile#Estimating_the_quantiles_of_a_population
func quantileR7(v []float64, p float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	if p == 1 {
		return s[len(s)-1]
	}
	h := float64(len(s)-1) * p
	i := int(h)
	if h == math.Floor(h) {
		// h falls on a sample value; interpolating would read past the
		// end for a single-element slice
		return s[i]
	}
	return s[i] + (h-math.Floor(h))*(s[i+1]-s[i])
}

// Median is the R-7 median, matching the convention of the statistical
// environments these tables usually come from. It returns NaN for an empty
// slice and does not reorder v.
func Median(v []float64) float64 {
	return quantileR7(v, 0.5)
}
