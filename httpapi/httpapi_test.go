package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/douglaz/feeaugur/engine"
	"github.com/douglaz/feeaugur/engine/snapshot"
)

type fakeLive struct {
	snapshots []snapshot.Snapshot
}

func (f fakeLive) Snapshots() []snapshot.Snapshot { return f.snapshots }

type fakeHistory struct {
	snapshots []snapshot.Snapshot
	err       error
}

func (f fakeHistory) Range(from, to time.Time) ([]snapshot.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []snapshot.Snapshot
	for _, s := range f.snapshots {
		if !s.Timestamp().Before(from) && !s.Timestamp().After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func mustEstimator(t *testing.T) *engine.FeeEstimator {
	t.Helper()
	est, err := engine.NewFeeEstimator(engine.DefaultConfig())
	if err != nil {
		t.Fatalf("NewFeeEstimator: %v", err)
	}
	return est
}

func TestHandleFeesSuccess(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snapshot.New([]snapshot.Transaction{{Weight: 400, Fee: 1000}}, 1, ts),
	}
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{snapshots: snaps},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fees", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var out engine.FeeEstimate
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !out.MempoolUpdateTime.Equal(ts) {
		t.Errorf("MempoolUpdateTime = %v, want %v", out.MempoolUpdateTime, ts)
	}
}

func TestHandleFeesNoSnapshotsReturns503(t *testing.T) {
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fees", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleFeesTargetValid(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snapshot.New([]snapshot.Transaction{{Weight: 400, Fee: 1000}}, 1, ts),
	}
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{snapshots: snaps},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fees/target/6", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var out engine.FeeEstimate
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(out.Estimates) != 1 {
		t.Fatalf("len(Estimates) = %d, want 1", len(out.Estimates))
	}
	if _, ok := out.Estimates[6]; !ok {
		t.Errorf("expected estimate for target 6, got keys %v", out.Estimates)
	}
}

func TestHandleFeesTargetMalformed(t *testing.T) {
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fees/target/not-a-number", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleFeesTargetNonPositive(t *testing.T) {
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fees/target/0", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHistoricalFeeSuccess(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snapshot.New([]snapshot.Transaction{{Weight: 400, Fee: 1000}}, 1, at.Add(-time.Hour)),
	}
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{snapshots: snaps},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/historical_fee?timestamp="+formatUnix(at), nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleHistoricalFeeMissingTimestamp(t *testing.T) {
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/historical_fee", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHistoricalFeeMalformedTimestamp(t *testing.T) {
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/historical_fee?timestamp=not-a-number", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHistoricalFeeNoDataInWindow(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s := NewServer(Config{
		Estimator: mustEstimator(t),
		Live:      fakeLive{},
		History:   fakeHistory{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/historical_fee?timestamp="+formatUnix(at), nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(Config{Estimator: mustEstimator(t), Live: fakeLive{}, History: fakeHistory{}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "OK")
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
