package feecalc

import "math"

// poissonUpperQuantile returns the largest integer k such that
// P(X >= k) >= p for X ~ Poisson(mean). Equivalently, the (1-p)-quantile of
// the upper tail: the pessimistic number of blocks we must plan for at
// confidence p over a period of mean blocks.
//
// The survival function S(k) = P(X>=k) is computed iteratively from the pmf
// to avoid evaluating the incomplete gamma function: S(0)=1,
// S(k) = S(k-1) - pmf(k-1).
func poissonUpperQuantile(mean float64, p float64, maxIters int) int {
	if mean <= 0 {
		// X is identically 0: S(0)=1>=p, S(1)=0<p for any p in (0,1).
		return 0
	}

	sf := 1.0               // S(0)
	pmf := math.Exp(-mean)  // pmf(0)
	best := 0
	for k := 1; k <= maxIters; k++ {
		sf -= pmf // now S(k)
		pmf *= mean / float64(k)
		if sf >= p {
			best = k
		} else {
			break
		}
	}
	return best
}

// quantileHorizon returns a safe upper bound on the number of iterations
// poissonUpperQuantile needs for the given mean: comfortably past the mean
// plus several standard deviations, the survival function is negligible for
// any probability this engine accepts (p strictly in (0,1)).
func quantileHorizon(mean float64) int {
	h := mean + 50*math.Sqrt(mean+1) + 100
	return int(h)
}
