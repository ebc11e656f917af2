// Package bucket implements the logarithmic fee-rate bucketing used
// throughout the estimation engine: a bijection (modulo clipping) between a
// fee rate in satoshis per virtual byte and an integer bucket index.
//
// Fee rates span several orders of magnitude, from ~1 to several thousand
// sat/vB. Equal-width buckets in log space keep resolution uniform in
// relative terms and keep the bucket count bounded regardless of how
// congested the mempool gets.
package bucket

import "math"

const (
	// MinBucket is the lowest valid bucket index for a stored snapshot.
	MinBucket int32 = 0

	// MaxBucket is the highest valid bucket index. Rates above
	// exp(MaxBucket/100) sat/vB are clamped into this bucket.
	MaxBucket int32 = 10000
)

// belowMin is returned by BucketOf for non-positive fee rates: a sentinel
// strictly below MinBucket signalling "too low to track". Callers that
// bucket real transactions clip this (and any other sub-MinBucket index) up
// to MinBucket; see snapshot.New.
const belowMin = MinBucket - 1

// BucketOf maps a fee rate (sat/vB) to its bucket index. For fee_rate <= 0 it
// returns a sentinel below MinBucket. The result is clamped to MaxBucket on
// the high end; it is not clamped on the low end, since negative indices are
// meaningful (sub-1 sat/vB rates) to callers that want them.
func BucketOf(feeRate float64) int32 {
	if feeRate <= 0 {
		return belowMin
	}
	b := int32(math.Floor(math.Log(feeRate) * 100))
	// math.Log can land a hair on the wrong side of a bucket edge; settle on
	// the bucket whose lower edge is the largest one not exceeding feeRate.
	if RateOf(b+1) <= feeRate {
		b++
	} else if RateOf(b) > feeRate {
		b--
	}
	if b > MaxBucket {
		return MaxBucket
	}
	return b
}

// RateOf returns the fee rate (sat/vB) at the lower edge of bucket b. It is
// the inverse of BucketOf: RateOf(BucketOf(r)) never exceeds r.
func RateOf(bucket int32) float64 {
	return math.Exp(float64(bucket) / 100.0)
}
