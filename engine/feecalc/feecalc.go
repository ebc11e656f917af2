// Package feecalc turns a mempool's current and inflowing fee-rate
// distribution into the fee rate required to confirm within a given number
// of blocks at a given confidence level.
//
// The core trick is that mining a block — removing the BlockCapacityWeight
// units of highest-fee-rate weight — on a cumulative-from-top dense array is
// exactly an elementwise clamp-subtract (densearray.Array.SubtractClamp).
// Simulating many blocks being mined, with new transactions arriving between
// them at the estimated inflow rate, then tells us how many blocks it takes
// for a given bucket's weight to clear entirely: that count, compared against
// a confidence-adjusted block budget, is the whole estimation problem.
package feecalc

import (
	"sort"

	"github.com/douglaz/feeaugur/engine/bucket"
	"github.com/douglaz/feeaugur/engine/densearray"
)

// BlockCapacityWeight is the maximum transaction weight a block can carry,
// per Bitcoin consensus rules (4,000,000 weight units).
const BlockCapacityWeight = 4_000_000.0

// unset marks a bucket that has not cleared within the iterations simulate
// was given; findCheapestBucket treats it as "never clears" for any
// finite budget.
const unset = -1

// ExpectedBlocksTable precomputes, for every (target, probability) pair, the
// number of blocks E such that a Poisson process with mean `target` has
// P(X >= E) >= probability. This is the pessimistic block budget a caller at
// confidence `probability` must plan for when aiming for `target` blocks,
// and does not depend on mempool contents: it is pure arrival-process math,
// so it is computed once per Config and reused across calls.
func ExpectedBlocksTable(targets, probabilities []float64) map[float64]map[float64]int {
	table := make(map[float64]map[float64]int, len(targets))
	for _, t := range targets {
		row := make(map[float64]int, len(probabilities))
		horizon := quantileHorizon(t)
		for _, p := range probabilities {
			row[p] = poissonUpperQuantile(t, p, horizon)
		}
		table[t] = row
	}
	enforceExpectedBlocksMonotonicity(table, targets, probabilities)
	return table
}

// enforceExpectedBlocksMonotonicity repairs any floating-point edge case
// where the quantile recurrence produced a non-monotone cell: E must be
// non-increasing as probability rises for a fixed target (demanding more
// confidence never allows a larger block budget) and non-decreasing as target rises
// for a fixed probability (a longer nominal target never needs a smaller
// worst-case budget).
func enforceExpectedBlocksMonotonicity(table map[float64]map[float64]int, targets, probabilities []float64) {
	sortedTargets := append([]float64(nil), targets...)
	sortFloats(sortedTargets)
	sortedProbs := append([]float64(nil), probabilities...)
	sortFloats(sortedProbs)

	for pass := 0; pass < 2; pass++ {
		for _, t := range sortedTargets {
			row := table[t]
			for i := 1; i < len(sortedProbs); i++ {
				if row[sortedProbs[i]] > row[sortedProbs[i-1]] {
					row[sortedProbs[i]] = row[sortedProbs[i-1]]
				}
			}
		}
		for _, p := range sortedProbs {
			for i := 1; i < len(sortedTargets); i++ {
				cur := table[sortedTargets[i]]
				prev := table[sortedTargets[i-1]]
				if cur[p] < prev[p] {
					cur[p] = prev[p]
				}
			}
		}
	}
}

// simulate mines the mempool forward, block by block, tracking the first
// iteration at which each bucket's cumulative-from-top weight reaches zero.
// base is the current cumulative weight array; addedPerBlock is the
// estimated weight arriving per block interval, added back in after each
// mining step. Buckets that never clear within maxIters stay unset.
func simulate(base, addedPerBlock densearray.Array, capacity float64, maxIters int) [densearray.Len]int {
	var n [densearray.Len]int
	for i := range n {
		n[i] = unset
	}
	state := base
	for iter := 1; iter <= maxIters; iter++ {
		mined := state.SubtractClamp(capacity)
		for i := range n {
			if n[i] == unset && mined[i] == 0 {
				n[i] = iter
			}
		}
		state = mined.Add(addedPerBlock)
	}
	return n
}

// findCheapestBucket returns the lowest (cheapest) bucket index whose
// simulated clearing time is within the k-block budget. Because n is
// non-increasing in bucket index (a higher fee rate never takes longer to
// clear), the qualifying buckets form a suffix of the index range; scanning
// from the bottom finds its minimum, which is the cheapest qualifying fee.
func findCheapestBucket(n [densearray.Len]int, k int) (int32, bool) {
	for b := 0; b < densearray.Len; b++ {
		if n[b] != unset && n[b] <= k {
			return int32(b), true
		}
	}
	return 0, false
}

// minFeeRate is the floor every produced rate is clamped to.
const minFeeRate = 1.0

// Table maps block target -> probability -> required fee rate (sat/vB). A
// (target, probability) pair with no entry means no bucket cleared within
// its block budget: the estimate is absent, not zero.
type Table map[float64]map[float64]float64

// Compute builds the fee-rate table for every (target, probability) pair,
// given the precomputed expected-blocks table and the mempool's current
// cumulative weight (base) plus its estimated per-block inflow
// (addedPerBlock).
func Compute(targets, probabilities []float64, expectedBlocks map[float64]map[float64]int, base, addedPerBlock densearray.Array) Table {
	maxK := 0
	for _, row := range expectedBlocks {
		for _, k := range row {
			if k > maxK {
				maxK = k
			}
		}
	}
	n := simulate(base, addedPerBlock, BlockCapacityWeight, maxK)

	table := make(Table, len(targets))
	for _, t := range targets {
		row := make(map[float64]float64, len(probabilities))
		for _, p := range probabilities {
			k := expectedBlocks[t][p]
			b, ok := findCheapestBucket(n, k)
			if !ok {
				continue // no bucket clears within budget: entry stays absent
			}
			rate := bucket.RateOf(b)
			if rate < minFeeRate {
				rate = minFeeRate
			}
			row[p] = rate
		}
		table[t] = row
	}
	enforceTableMonotonicity(table, targets, probabilities)
	return table
}

// enforceTableMonotonicity applies the same row/column monotonicity
// guarantee as enforceExpectedBlocksMonotonicity, but on fee rates: demanding
// higher confidence never lowers the required rate, and allowing more blocks
// never raises it. Two passes bring the table to a fixpoint — a single pass
// can leave a cell inconsistent with a neighbor fixed up after it was
// visited. A cell with no entry is left absent; monotonicity is only
// enforced between cells that both exist.
func enforceTableMonotonicity(table Table, targets, probabilities []float64) {
	sortedTargets := append([]float64(nil), targets...)
	sortFloats(sortedTargets)
	sortedProbs := append([]float64(nil), probabilities...)
	sortFloats(sortedProbs)

	for pass := 0; pass < 2; pass++ {
		for _, t := range sortedTargets {
			row := table[t]
			for i := 1; i < len(sortedProbs); i++ {
				cur, curOK := row[sortedProbs[i]]
				prev, prevOK := row[sortedProbs[i-1]]
				if curOK && prevOK && cur < prev {
					row[sortedProbs[i]] = prev
				}
			}
		}
		for _, p := range sortedProbs {
			for i := 1; i < len(sortedTargets); i++ {
				curRow := table[sortedTargets[i]]
				prevRow := table[sortedTargets[i-1]]
				cur, curOK := curRow[p]
				prev, prevOK := prevRow[p]
				if curOK && prevOK && cur > prev {
					curRow[p] = prev
				}
			}
		}
	}
}

func sortFloats(fs []float64) {
	sort.Float64s(fs)
}
