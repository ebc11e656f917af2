// Package engine implements the mempool fee-rate estimation core: turning a
// sequence of MempoolSnapshot values into the fee rate required to confirm
// within N blocks at a given confidence level.
//
// The engine is a pure function from immutable inputs to an immutable
// result — no goroutines, no I/O, no shared state — so FeeEstimator is safe
// for concurrent use by multiple callers computing estimates over disjoint
// inputs.
package engine

import (
	"fmt"
	"time"

	"github.com/douglaz/feeaugur/engine/densearray"
	"github.com/douglaz/feeaugur/engine/feecalc"
	"github.com/douglaz/feeaugur/engine/inflow"
	"github.com/douglaz/feeaugur/engine/snapshot"
)

// Config controls how a FeeEstimator builds its fee-rate table.
type Config struct {
	// Probabilities is the ordered list of confidence values to report, each
	// strictly between 0 and 1.
	Probabilities []float64

	// BlockTargets is the ordered list of block targets to report,
	// each a positive real number of blocks (fractional targets allowed).
	BlockTargets []float64

	// ShortTermWindow bounds how far back the engine looks for the
	// "already queued" inflow component.
	ShortTermWindow time.Duration

	// LongTermWindow bounds how far back the engine looks for the
	// steady per-block arrival rate used during simulation.
	LongTermWindow time.Duration
}

// DefaultConfig returns the recommended configuration: the standard
// confidence levels and block targets used by every default deployment.
func DefaultConfig() Config {
	return Config{
		Probabilities:   []float64{0.05, 0.20, 0.50, 0.80, 0.95},
		BlockTargets:    []float64{3, 6, 9, 12, 18, 24, 36, 48, 72, 96, 144},
		ShortTermWindow: 30 * time.Minute,
		LongTermWindow:  24 * time.Hour,
	}
}

// validate checks the constraints documented for Config, returning
// ErrInvalidConfig wrapped with the specific violation on failure.
func (c Config) validate() error {
	if len(c.Probabilities) == 0 {
		return fmt.Errorf("%w: probabilities must not be empty", ErrInvalidConfig)
	}
	for _, p := range c.Probabilities {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("%w: probability %v must be in (0,1)", ErrInvalidConfig, p)
		}
	}
	if len(c.BlockTargets) == 0 {
		return fmt.Errorf("%w: block_targets must not be empty", ErrInvalidConfig)
	}
	for i, t := range c.BlockTargets {
		if t <= 0 {
			return fmt.Errorf("%w: block target %v must be positive", ErrInvalidConfig, t)
		}
		if i > 0 && t <= c.BlockTargets[i-1] {
			return fmt.Errorf("%w: block_targets must be strictly ascending (%v follows %v)",
				ErrInvalidConfig, t, c.BlockTargets[i-1])
		}
	}
	if c.ShortTermWindow <= 0 {
		return fmt.Errorf("%w: short_term_window must be positive", ErrInvalidConfig)
	}
	if c.LongTermWindow <= 0 {
		return fmt.Errorf("%w: long_term_window must be positive", ErrInvalidConfig)
	}
	return nil
}

// FeeEstimator computes fee-rate tables for a fixed Config. The
// expected-blocks table depends only on Config, not on mempool state, so it
// is computed once at construction and reused by every CalculateEstimates
// call.
type FeeEstimator struct {
	cfg            Config
	expectedBlocks map[float64]map[float64]int
}

// NewFeeEstimator validates cfg and builds an estimator for it.
func NewFeeEstimator(cfg Config) (*FeeEstimator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &FeeEstimator{
		cfg:            cfg,
		expectedBlocks: feecalc.ExpectedBlocksTable(cfg.BlockTargets, cfg.Probabilities),
	}, nil
}

// CalculateEstimates computes the fee-rate table over snapshots. When
// numBlocksOverride is non-nil, the table is restricted to that single
// block target (computed fresh, not drawn from the cached multi-target
// table). Fails with ErrInsufficientData if snapshots is empty.
func (e *FeeEstimator) CalculateEstimates(snapshots []snapshot.Snapshot, numBlocksOverride *float64) (FeeEstimate, error) {
	if len(snapshots) == 0 {
		return FeeEstimate{}, ErrInsufficientData
	}

	latest := latestSnapshot(snapshots)

	targets := e.cfg.BlockTargets
	expectedBlocks := e.expectedBlocks
	if numBlocksOverride != nil {
		targets = []float64{*numBlocksOverride}
		expectedBlocks = feecalc.ExpectedBlocksTable(targets, e.cfg.Probabilities)
	}

	shortInflow, longInflow := inflow.Compute(snapshots, e.cfg.ShortTermWindow, e.cfg.LongTermWindow)
	base := densearray.Build(latest).Add(shortInflow)

	table := feecalc.Compute(targets, e.cfg.Probabilities, expectedBlocks, base, longInflow)

	estimates := make(map[float64]BlockTarget, len(table))
	for _, blocks := range targets {
		row := table[blocks]
		if row == nil {
			row = map[float64]float64{}
		}
		estimates[blocks] = BlockTarget{Blocks: blocks, Probabilities: row}
	}

	return FeeEstimate{
		MempoolUpdateTime: latest.Timestamp(),
		Estimates:         estimates,
	}, nil
}

// latestSnapshot returns the snapshot with the greatest timestamp.
func latestSnapshot(snapshots []snapshot.Snapshot) snapshot.Snapshot {
	latest := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.Timestamp().After(latest.Timestamp()) {
			latest = s
		}
	}
	return latest
}
