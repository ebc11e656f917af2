// Package snapshot models a single observation of the mempool: a chain
// height, a timestamp, and a sparse bucketed-weight map built from the raw
// transactions seen at that instant. Once constructed a Snapshot is
// immutable.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/douglaz/feeaugur/engine/bucket"
)

// Transaction is an immutable mempool transaction as seen by the collector.
type Transaction struct {
	// Weight is the BIP-141 weight of the transaction, in weight units.
	Weight uint64

	// Fee is the total fee paid by the transaction, in satoshis.
	Fee uint64
}

// FeeRate returns the transaction's fee rate in satoshis per virtual byte:
// fee * 4 / weight.
func (t Transaction) FeeRate() float64 {
	return float64(t.Fee) * 4 / float64(t.Weight)
}

// Snapshot is a bucketed observation of the mempool. It is built once from a
// list of Transactions and is immutable thereafter.
type Snapshot struct {
	blockHeight     uint32
	timestamp       time.Time
	bucketedWeights map[int32]uint64
}

// New aggregates txs into a Snapshot tagged with the given chain height and
// observation time. Transactions below bucket.MinBucket (sub-1-sat/vB rates,
// including non-positive fee rates) are folded into bucket.MinBucket: the
// engine's floor is 1.0 sat/vB, so sub-minimum rates are tracked as "as cheap
// as we track" rather than discarded, preserving total weight.
func New(txs []Transaction, blockHeight uint32, timestamp time.Time) Snapshot {
	weights := make(map[int32]uint64)
	for _, tx := range txs {
		b := bucket.BucketOf(tx.FeeRate())
		if b < bucket.MinBucket {
			b = bucket.MinBucket
		}
		weights[b] += tx.Weight
	}
	return Snapshot{blockHeight: blockHeight, timestamp: timestamp.UTC(), bucketedWeights: weights}
}

// BlockHeight returns the chain height at the time of observation.
func (s Snapshot) BlockHeight() uint32 { return s.blockHeight }

// Timestamp returns the UTC observation time.
func (s Snapshot) Timestamp() time.Time { return s.timestamp }

// Weight returns the total transaction weight recorded in bucket b (zero if
// nothing was observed there).
func (s Snapshot) Weight(b int32) uint64 { return s.bucketedWeights[b] }

// Buckets returns the populated bucket indices in ascending order.
func (s Snapshot) Buckets() []int32 {
	buckets := make([]int32, 0, len(s.bucketedWeights))
	for b := range s.bucketedWeights {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets
}

// TotalWeight returns the sum of weight across all buckets.
func (s Snapshot) TotalWeight() uint64 {
	var total uint64
	for _, w := range s.bucketedWeights {
		total += w
	}
	return total
}

// wireSnapshot is the on-disk representation described by the snapshot
// persistence format: one file per snapshot, decimal-string bucket keys,
// RFC-3339 UTC timestamp with sub-second precision.
type wireSnapshot struct {
	BlockHeight     uint32            `json:"block_height"`
	Timestamp       string            `json:"timestamp"`
	BucketedWeights map[string]uint64 `json:"bucketed_weights"`
}

// MarshalJSON renders the stable on-disk form documented for the snapshot
// persistence layer.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		BlockHeight:     s.blockHeight,
		Timestamp:       s.timestamp.UTC().Format(time.RFC3339Nano),
		BucketedWeights: make(map[string]uint64, len(s.bucketedWeights)),
	}
	for b, weight := range s.bucketedWeights {
		w.BucketedWeights[strconv.FormatInt(int64(b), 10)] = weight
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the stable on-disk form. Unknown fields are ignored.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("snapshot: parsing timestamp %q: %w", w.Timestamp, err)
	}
	weights := make(map[int32]uint64, len(w.BucketedWeights))
	for k, v := range w.BucketedWeights {
		b, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return fmt.Errorf("snapshot: invalid bucket key %q: %w", k, err)
		}
		weights[int32(b)] = v
	}
	s.blockHeight = w.BlockHeight
	s.timestamp = ts.UTC()
	s.bucketedWeights = weights
	return nil
}
