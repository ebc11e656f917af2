package engine

import "errors"

// ErrInvalidConfig is returned by NewFeeEstimator when a Config violates one
// of its documented constraints (empty probability list, non-ascending
// block targets, non-positive windows).
var ErrInvalidConfig = errors.New("engine: invalid configuration")

// ErrInsufficientData is returned by CalculateEstimates when called with no
// snapshots at all.
var ErrInsufficientData = errors.New("engine: insufficient snapshot data")

// ErrCalculation marks an internal numeric failure. The invariants enforced
// on Config and on snapshot.Snapshot should make this unreachable; if it
// surfaces, treat it as a bug rather than a transient condition.
var ErrCalculation = errors.New("engine: calculation failure")
