package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// BlockTarget holds the fee rates required to confirm within Blocks blocks,
// keyed by confidence probability. A probability with no entry means "no
// estimate computable", distinct from a zero rate.
type BlockTarget struct {
	Blocks        float64
	Probabilities map[float64]float64
}

// FeeEstimate is the result of one CalculateEstimates call: the fee rate
// needed for each configured (or overridden) block target, at each
// configured confidence level, as of MempoolUpdateTime.
type FeeEstimate struct {
	MempoolUpdateTime time.Time
	Estimates         map[float64]BlockTarget
}

// wire* mirror the HTTP response shape from the external interface: string
// keys (blocks without a trailing ".0", probabilities to two decimals) and
// fee rates nested one level under "probabilities"/"fee_rate".
type wireFeeEstimate struct {
	MempoolUpdateTime string                     `json:"mempool_update_time"`
	Estimates         map[string]wireBlockTarget `json:"estimates"`
}

type wireBlockTarget struct {
	Probabilities map[string]wireFeeRate `json:"probabilities"`
}

type wireFeeRate struct {
	FeeRate float64 `json:"fee_rate"`
}

// MarshalJSON renders FeeEstimate in the exact shape documented for the
// HTTP surface: string-keyed nested maps, RFC-3339 timestamp, probability
// keys formatted to two decimals.
func (e FeeEstimate) MarshalJSON() ([]byte, error) {
	w := wireFeeEstimate{
		MempoolUpdateTime: e.MempoolUpdateTime.UTC().Format(time.RFC3339Nano),
		Estimates:         make(map[string]wireBlockTarget, len(e.Estimates)),
	}
	for blocks, bt := range e.Estimates {
		probs := make(map[string]wireFeeRate, len(bt.Probabilities))
		for p, rate := range bt.Probabilities {
			probs[formatProbability(p)] = wireFeeRate{FeeRate: rate}
		}
		w.Estimates[formatBlocks(blocks)] = wireBlockTarget{Probabilities: probs}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire shape back into a FeeEstimate, the inverse
// of MarshalJSON. Keys that fail to parse as numbers are rejected outright:
// the wire format never emits anything else.
func (e *FeeEstimate) UnmarshalJSON(data []byte) error {
	var w wireFeeEstimate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.MempoolUpdateTime)
	if err != nil {
		return fmt.Errorf("engine: parsing mempool_update_time: %v", err)
	}
	estimates := make(map[float64]BlockTarget, len(w.Estimates))
	for blocksStr, bt := range w.Estimates {
		blocks, err := strconv.ParseFloat(blocksStr, 64)
		if err != nil {
			return fmt.Errorf("engine: parsing block target %q: %v", blocksStr, err)
		}
		probs := make(map[float64]float64, len(bt.Probabilities))
		for pStr, rate := range bt.Probabilities {
			p, err := strconv.ParseFloat(pStr, 64)
			if err != nil {
				return fmt.Errorf("engine: parsing probability %q: %v", pStr, err)
			}
			probs[p] = rate.FeeRate
		}
		estimates[blocks] = BlockTarget{Blocks: blocks, Probabilities: probs}
	}
	e.MempoolUpdateTime = ts
	e.Estimates = estimates
	return nil
}

// formatBlocks renders a block target without a spurious ".0" for whole
// numbers, while still showing fractional targets exactly.
func formatBlocks(blocks float64) string {
	return strconv.FormatFloat(blocks, 'f', -1, 64)
}

// formatProbability renders a confidence value to the two decimals the HTTP
// surface documents (e.g. 0.95 -> "0.95").
func formatProbability(p float64) string {
	return fmt.Sprintf("%.2f", p)
}
