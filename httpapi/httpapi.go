// Package httpapi exposes the fee estimation engine over plain REST/JSON
// GET endpoints, the successor to the teacher's gorilla/rpc JSON-RPC
// surface: one handler per route, status codes signalling readiness rather
// than RPC-style error replies.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rcrowley/go-metrics"

	"github.com/douglaz/feeaugur/engine"
	"github.com/douglaz/feeaugur/engine/snapshot"
)

// historyWindow is the fixed lookback used by /historical_fee, per the
// documented contract: "FeeEstimate computed from snapshots in the 24
// hours ending at the given timestamp."
const historyWindow = 24 * time.Hour

// SnapshotSource supplies the in-memory window of recent snapshots a live
// /fees request is computed over; collect.Collector satisfies it.
type SnapshotSource interface {
	Snapshots() []snapshot.Snapshot
}

// HistorySource answers the time-range queries /historical_fee needs;
// snapshotstore.Store satisfies it.
type HistorySource interface {
	Range(from, to time.Time) ([]snapshot.Snapshot, error)
}

// Config controls a Server.
type Config struct {
	Addr      string
	Estimator *engine.FeeEstimator
	Live      SnapshotSource
	History   HistorySource
	Logger    *log.Logger
}

// Server serves the fee estimation HTTP surface.
type Server struct {
	cfg    Config
	logger *log.Logger
	router *mux.Router

	requests metrics.Meter
	errors   metrics.Meter
}

// NewServer builds a Server for cfg, wiring its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   mux.NewRouter(),
		requests: metrics.NewMeter(),
		errors:   metrics.NewMeter(),
	}
	s.router.HandleFunc("/fees", s.handleFees).Methods(http.MethodGet)
	s.router.HandleFunc("/fees/target/{num_blocks}", s.handleFeesTarget).Methods(http.MethodGet)
	s.router.HandleFunc("/historical_fee", s.handleHistoricalFee).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return s
}

// ListenAndServe blocks serving cfg.Addr.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("[DEBUG] HTTP server listening on %s", s.cfg.Addr)
	return http.ListenAndServe(s.cfg.Addr, s.router)
}

// Handler returns the server's router, for tests that want to drive it with
// httptest.NewServer or httptest.NewRecorder directly.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	s.requests.Mark(1)
	snapshots := s.cfg.Live.Snapshots()
	estimate, err := s.cfg.Estimator.CalculateEstimates(snapshots, nil)
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) handleFeesTarget(w http.ResponseWriter, r *http.Request) {
	s.requests.Mark(1)
	numBlocksStr := mux.Vars(r)["num_blocks"]
	numBlocks, err := strconv.ParseFloat(numBlocksStr, 64)
	if err != nil || numBlocks <= 0 {
		s.errors.Mark(1)
		writeError(w, http.StatusBadRequest, "num_blocks must be a positive number")
		return
	}

	snapshots := s.cfg.Live.Snapshots()
	estimate, err := s.cfg.Estimator.CalculateEstimates(snapshots, &numBlocks)
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) handleHistoricalFee(w http.ResponseWriter, r *http.Request) {
	s.requests.Mark(1)
	tsStr := r.URL.Query().Get("timestamp")
	if tsStr == "" {
		s.errors.Mark(1)
		writeError(w, http.StatusBadRequest, "timestamp query parameter is required")
		return
	}
	secs, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		s.errors.Mark(1)
		writeError(w, http.StatusBadRequest, "timestamp must be a Unix second count")
		return
	}
	to := time.Unix(secs, 0).UTC()
	from := to.Add(-historyWindow)

	snapshots, err := s.cfg.History.Range(from, to)
	if err != nil {
		s.errors.Mark(1)
		s.logger.Printf("[DEBUG] historical_fee range query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load historical snapshots")
		return
	}

	estimate, err := s.cfg.Estimator.CalculateEstimates(snapshots, nil)
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// writeEstimateError maps an engine error to the documented status code:
// 503 when there simply isn't enough data yet (the collector is still
// warming up), 500 for anything else unexpected.
func (s *Server) writeEstimateError(w http.ResponseWriter, err error) {
	s.errors.Mark(1)
	if errors.Is(err, engine.ErrInsufficientData) {
		writeError(w, http.StatusServiceUnavailable, "no estimate available yet")
		return
	}
	s.logger.Printf("[DEBUG] estimate calculation failed: %v", err)
	writeError(w, http.StatusInternalServerError, "estimate calculation failed")
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
