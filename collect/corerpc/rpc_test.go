package corerpc

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testServer stands in for a Bitcoin Core node, answering batched JSON-RPC
// requests from a fixed set of per-method results.
func testServer(t *testing.T, results map[string]json.RawMessage, wantUser, wantPass string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantUser != "" || wantPass != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != wantUser || pass != wantPass {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		var reqs []request
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		resps := make([]response, len(reqs))
		for i, req := range reqs {
			result, ok := results[req.Method]
			if !ok {
				t.Fatalf("unexpected method %q", req.Method)
			}
			resps[i] = response{Jsonrpc: "2.0", Result: result, Id: req.Id}
		}
		json.NewEncoder(w).Encode(resps)
	}))
}

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("splitting test server address: %v", err)
	}
	return NewClient(Config{Host: host, Port: port, Timeout: 5})
}

func TestFetchSnapshot(t *testing.T) {
	results := map[string]json.RawMessage{
		"getblockchaininfo": json.RawMessage(`{"blocks": 842000}`),
		"getrawmempool": json.RawMessage(`{
			"abc123": {"weight": 400, "fees": {"base": 0.00001000}},
			"def456": {"weight": 800, "fees": {"base": 0.00004000}}
		}`),
	}
	srv := testServer(t, results, "", "")
	defer srv.Close()

	c := clientFor(t, srv)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snap, err := c.FetchSnapshot(now)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if snap.BlockHeight() != 842000 {
		t.Errorf("BlockHeight = %d, want 842000", snap.BlockHeight())
	}
	if !snap.Timestamp().Equal(now) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp(), now)
	}
	if got, want := snap.TotalWeight(), uint64(1200); got != want {
		t.Errorf("TotalWeight = %d, want %d", got, want)
	}
}

func TestFetchSnapshotBasicAuth(t *testing.T) {
	results := map[string]json.RawMessage{
		"getblockchaininfo": json.RawMessage(`{"blocks": 1}`),
		"getrawmempool":     json.RawMessage(`{}`),
	}
	srv := testServer(t, results, "rpcuser", "rpcpass")
	defer srv.Close()

	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	c := NewClient(Config{Host: host, Port: port, Username: "rpcuser", Password: "rpcpass", Timeout: 5})
	if _, err := c.FetchSnapshot(time.Now()); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
}

func TestFetchSnapshotCookieFile(t *testing.T) {
	results := map[string]json.RawMessage{
		"getblockchaininfo": json.RawMessage(`{"blocks": 1}`),
		"getrawmempool":     json.RawMessage(`{}`),
	}
	srv := testServer(t, results, "cookieuser", "cookiepass")
	defer srv.Close()

	dir := t.TempDir()
	cookiePath := filepath.Join(dir, ".cookie")
	if err := os.WriteFile(cookiePath, []byte("cookieuser:cookiepass\n"), 0600); err != nil {
		t.Fatalf("writing cookie file: %v", err)
	}

	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	c := NewClient(Config{Host: host, Port: port, CookieFile: cookiePath, Timeout: 5})
	if _, err := c.FetchSnapshot(time.Now()); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
}

func TestFetchSnapshotRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqs []request
		json.NewDecoder(r.Body).Decode(&reqs)
		resps := make([]response, len(reqs))
		for i, req := range reqs {
			resps[i] = response{Jsonrpc: "2.0", Error: "boom", Id: req.Id}
		}
		json.NewEncoder(w).Encode(resps)
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	if _, err := c.FetchSnapshot(time.Now()); err == nil {
		t.Fatal("expected an error from an RPC error response")
	}
}

func TestAuthMalformedCookieFile(t *testing.T) {
	dir := t.TempDir()
	cookiePath := filepath.Join(dir, ".cookie")
	if err := os.WriteFile(cookiePath, []byte("not-a-user-pass-pair"), 0600); err != nil {
		t.Fatalf("writing cookie file: %v", err)
	}
	c := NewClient(Config{CookieFile: cookiePath})
	if _, _, err := c.auth(); err == nil {
		t.Fatal("expected an error for a malformed cookie file")
	}
}

func TestAuthMissingCookieFile(t *testing.T) {
	c := NewClient(Config{CookieFile: filepath.Join(t.TempDir(), "missing")})
	if _, _, err := c.auth(); err == nil {
		t.Fatal("expected an error for a missing cookie file")
	}
}
