// Package collect polls a mempool data source on a timer, persists each
// observation, and keeps a bounded in-memory window of recent snapshots for
// the estimation engine to consume.
package collect

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/douglaz/feeaugur/engine/snapshot"
)

// Fetcher retrieves a single mempool observation, timestamped now.
type Fetcher func(now time.Time) (snapshot.Snapshot, error)

// Store persists snapshots and answers range queries over them; see package
// snapshotstore for the on-disk implementation.
type Store interface {
	Put(snapshot.Snapshot) error
	Range(from, to time.Time) ([]snapshot.Snapshot, error)
}

// Config controls a Collector.
type Config struct {
	// PollPeriod is the interval between mempool polls.
	PollPeriod time.Duration

	// Fetch retrieves one observation; typically corerpc.Client.FetchSnapshot.
	Fetch Fetcher

	// Store persists every fetched snapshot.
	Store Store

	// RetentionWindow bounds how far back Snapshots() reports: it must be at
	// least as large as the engine's long-term inflow window, or inflow
	// estimates will be silently truncated.
	RetentionWindow time.Duration

	Logger *log.Logger
}

// Collector polls Fetch every PollPeriod, persists each result to Store, and
// keeps the last RetentionWindow of snapshots in memory for fast access.
type Collector struct {
	cfg    Config
	logger *log.Logger

	mux       sync.RWMutex
	snapshots []snapshot.Snapshot
	lastErr   error

	done chan struct{}

	pollTimer  metrics.Timer
	pollErrors metrics.Counter
}

// NewCollector returns a Collector for cfg. Run must be called to begin
// polling.
func NewCollector(cfg Config) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Collector{
		cfg:        cfg,
		logger:     logger,
		done:       make(chan struct{}),
		pollTimer:  metrics.NewTimer(),
		pollErrors: metrics.NewCounter(),
	}
}

// Run performs an initial synchronous poll (so callers can detect an
// immediately-unreachable data source) and then begins polling on a ticker
// in the background. It returns the error from the initial poll, if any.
func (c *Collector) Run() error {
	if err := c.poll(); err != nil {
		return fmt.Errorf("initial poll: %v", err)
	}
	go c.loop()
	return nil
}

// Stop halts polling. It does not block; in-flight polls are allowed to
// finish.
func (c *Collector) Stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Snapshots returns the snapshots currently retained, oldest first.
func (c *Collector) Snapshots() []snapshot.Snapshot {
	c.mux.RLock()
	defer c.mux.RUnlock()
	out := make([]snapshot.Snapshot, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// LastError returns the error from the most recent poll, or nil if the most
// recent poll succeeded.
func (c *Collector) LastError() error {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.lastErr
}

func (c *Collector) loop() {
	ticker := time.NewTicker(c.cfg.PollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.poll(); err != nil {
				c.logger.Printf("[DEBUG] poll failed: %v", err)
			}
		case <-c.done:
			return
		}
	}
}

func (c *Collector) poll() error {
	start := time.Now()
	now := start.UTC()
	snap, err := c.cfg.Fetch(now)
	c.pollTimer.UpdateSince(start)

	c.mux.Lock()
	c.lastErr = err
	c.mux.Unlock()

	if err != nil {
		c.pollErrors.Inc(1)
		return err
	}

	if err := c.cfg.Store.Put(snap); err != nil {
		return fmt.Errorf("persisting snapshot: %v", err)
	}

	c.mux.Lock()
	c.snapshots = append(c.snapshots, snap)
	c.snapshots = pruneOlderThan(c.snapshots, snap.Timestamp().Add(-c.cfg.RetentionWindow))
	c.mux.Unlock()

	c.logger.Printf("[DEBUG] collected snapshot height=%d weight=%d", snap.BlockHeight(), snap.TotalWeight())
	return nil
}

// pruneOlderThan drops every snapshot with a timestamp before cutoff,
// assuming snapshots is already sorted ascending by timestamp (true since
// Collector only ever appends newly-fetched, monotonically-timestamped
// snapshots).
func pruneOlderThan(snapshots []snapshot.Snapshot, cutoff time.Time) []snapshot.Snapshot {
	for i, s := range snapshots {
		if !s.Timestamp().Before(cutoff) {
			return snapshots[i:]
		}
	}
	return nil
}
