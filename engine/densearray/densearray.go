// Package densearray converts a sparse Snapshot into a fixed-length,
// cumulative-from-top weight vector suitable for the arithmetic the fee
// calculator needs: "how much weight is available at or above fee bucket k"
// as an O(1) lookup.
package densearray

import (
	"github.com/douglaz/feeaugur/engine/bucket"
	"github.com/douglaz/feeaugur/engine/snapshot"
)

// Len is the number of entries in an Array: one per valid bucket index.
const Len = int(bucket.MaxBucket) + 1

// Array holds, for every bucket i, the total weight of transactions with fee
// rate at least bucket.RateOf(i): C[i] = sum(w[j] for j >= i). C is
// non-increasing in i. Values are carried as float64 because inflow rates
// (§ Inflow Calculator) are themselves fractional weight-per-block figures;
// all downstream arithmetic stays in this domain for bit-identical results.
type Array [Len]float64

// Build expands s into its cumulative-from-top dense form.
func Build(s snapshot.Snapshot) Array {
	var perBucket [Len]float64
	for _, b := range s.Buckets() {
		if b < bucket.MinBucket || b > bucket.MaxBucket {
			continue
		}
		perBucket[b] += float64(s.Weight(b))
	}
	var c Array
	var running float64
	for i := Len - 1; i >= 0; i-- {
		running += perBucket[i]
		c[i] = running
	}
	return c
}

// Add returns the elementwise sum of a and b.
func (a Array) Add(b Array) Array {
	var out Array
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}

// PositiveDelta returns, elementwise, max(0, a[i]-prev[i]) — the increase in
// cumulative weight at or above each bucket, used by the inflow calculator
// to count only arrivals and ignore confirmations/evictions.
func (a Array) PositiveDelta(prev Array) Array {
	var out Array
	for i := range out {
		if d := a[i] - prev[i]; d > 0 {
			out[i] = d
		}
	}
	return out
}

// DivideScalar divides every element by d, returning a zero Array if d <= 0.
func (a Array) DivideScalar(d float64) Array {
	var out Array
	if d <= 0 {
		return out
	}
	for i := range out {
		out[i] = a[i] / d
	}
	return out
}

// SubtractClamp returns, elementwise, max(0, a[i]-amount). Because a is
// cumulative-from-top, subtracting a flat block-capacity amount from every
// entry is exactly equivalent to mining the highest-fee weight first: see
// the Fee Calculator's block-mining simulation.
func (a Array) SubtractClamp(amount float64) Array {
	var out Array
	for i := range out {
		if v := a[i] - amount; v > 0 {
			out[i] = v
		}
	}
	return out
}
