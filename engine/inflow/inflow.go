// Package inflow estimates the rate at which new transaction weight is
// arriving into the mempool, per bucket, over a short and a long time
// window.
package inflow

import (
	"sort"
	"time"

	"github.com/douglaz/feeaugur/engine/densearray"
	"github.com/douglaz/feeaugur/engine/snapshot"
)

// blockInterval is the average Bitcoin block time used to normalize summed
// deltas into a per-block-interval rate.
const blockInterval = 600 * time.Second

// Compute returns the short-term and long-term per-bucket inflow rate
// vectors for the given snapshots, each windowed back from the latest
// snapshot's timestamp. Snapshots are sorted by timestamp first; any
// snapshot whose timestamp does not strictly increase over the previous one
// kept is skipped, per the "non-monotone timestamps are skipped" rule.
func Compute(snapshots []snapshot.Snapshot, shortWindow, longWindow time.Duration) (short, long densearray.Array) {
	sorted := sortedDistinct(snapshots)
	if len(sorted) == 0 {
		return short, long
	}
	latest := sorted[len(sorted)-1].Timestamp()
	short = computeWindow(sorted, latest, shortWindow)
	long = computeWindow(sorted, latest, longWindow)
	return short, long
}

// sortedDistinct returns snapshots sorted ascending by timestamp, dropping
// any snapshot that does not strictly increase the timestamp of the last one
// kept.
func sortedDistinct(snapshots []snapshot.Snapshot) []snapshot.Snapshot {
	if len(snapshots) == 0 {
		return nil
	}
	cp := make([]snapshot.Snapshot, len(snapshots))
	copy(cp, snapshots)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp().Before(cp[j].Timestamp()) })

	out := make([]snapshot.Snapshot, 0, len(cp))
	out = append(out, cp[0])
	for _, s := range cp[1:] {
		if s.Timestamp().After(out[len(out)-1].Timestamp()) {
			out = append(out, s)
		}
	}
	return out
}

// computeWindow sums positive per-bucket deltas between consecutive
// snapshots falling within [latest-window, latest], then normalizes to a
// per-block-interval rate. If the window spans more than the data actually
// covers, the actual span is used instead (behaves as if the window equals
// the data span).
func computeWindow(sorted []snapshot.Snapshot, latest time.Time, window time.Duration) densearray.Array {
	start := latest.Add(-window)
	var windowed []snapshot.Snapshot
	for _, s := range sorted {
		if !s.Timestamp().Before(start) {
			windowed = append(windowed, s)
		}
	}
	var sum densearray.Array
	if len(windowed) < 2 {
		return sum
	}

	for i := 1; i < len(windowed); i++ {
		prevC := densearray.Build(windowed[i-1])
		curC := densearray.Build(windowed[i])
		sum = sum.Add(curC.PositiveDelta(prevC))
	}

	span := windowed[len(windowed)-1].Timestamp().Sub(windowed[0].Timestamp())
	effective := window
	if span < effective {
		effective = span
	}
	if effective <= 0 {
		return densearray.Array{}
	}
	blocks := effective.Seconds() / blockInterval.Seconds()
	return sum.DivideScalar(blocks)
}
