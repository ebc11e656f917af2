// Package corerpc fetches mempool snapshots from a Bitcoin Core node over
// its JSON-RPC interface: one batched getblockchaininfo + getrawmempool(true)
// call per poll, folded directly into a snapshot.Snapshot.
package corerpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/douglaz/feeaugur/engine/snapshot"
)

// Config configures the JSON-RPC connection to a Bitcoin Core node.
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// CookieFile, given, is read on every request for "user:password"
	// Basic-auth credentials, and takes precedence over Username/Password:
	// it is Bitcoin Core's default auth mechanism and rotates on restart.
	CookieFile string `json:"cookiefile" yaml:"cookiefile"`

	// Timeout is the HTTP client timeout, in seconds.
	Timeout int `json:"timeout" yaml:"timeout"`
}

type request struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	Id      int64       `json:"id"`
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   interface{}     `json:"error"`
	Id      int64           `json:"id"`
}

// Client fetches mempool snapshots from a single Bitcoin Core node.
type Client struct {
	currid     int64
	httpclient *http.Client
	cfg        Config
	url        string
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpclient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		url:        "http://" + net.JoinHostPort(cfg.Host, cfg.Port),
	}
}

func (c *Client) newRequest(method string, params interface{}) *request {
	return &request{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		Id:      atomic.AddInt64(&c.currid, 1),
	}
}

// FetchSnapshot polls the node for its current height and mempool contents
// in one batched call and builds a snapshot.Snapshot from them, timestamped
// now.
func (c *Client) FetchSnapshot(now time.Time) (snapshot.Snapshot, error) {
	reqs := []*request{
		c.newRequest("getblockchaininfo", nil),
		c.newRequest("getrawmempool", []bool{true}),
	}
	resp, err := c.sendBatch(reqs)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("corerpc: %v", err)
	}

	var info blockchainInfo
	if err := json.Unmarshal(resp[0], &info); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("corerpc: unmarshaling getblockchaininfo: %v", err)
	}

	var entries map[string]mempoolEntry
	if err := json.Unmarshal(resp[1], &entries); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("corerpc: unmarshaling getrawmempool: %v", err)
	}

	txs := make([]snapshot.Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, snapshot.Transaction{Weight: e.Weight, Fee: e.feeSatoshis()})
	}
	return snapshot.New(txs, info.Blocks, now), nil
}

// sendBatch sends a JSON-RPC batch request and returns each result in the
// same order as reqs, matched by id rather than by response order (Bitcoin
// Core does not guarantee batch response ordering).
func (c *Client) sendBatch(reqs []*request) ([]json.RawMessage, error) {
	idlist := make([]int64, len(reqs))
	for i, r := range reqs {
		idlist[i] = r.Id
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, err
	}
	respBody, err := c.sendHTTP(body)
	if err != nil {
		return nil, err
	}

	var resps []response
	if err := json.Unmarshal(respBody, &resps); err != nil {
		return nil, err
	}

	result := make([]json.RawMessage, len(reqs))
IDLoop:
	for i, id := range idlist {
		for _, r := range resps {
			if r.Id == id {
				if r.Error != nil {
					return nil, fmt.Errorf("%v", r.Error)
				}
				result[i] = r.Result
				continue IDLoop
			}
		}
		return nil, fmt.Errorf("unmatched req/resp IDs")
	}
	return result, nil
}

func (c *Client) sendHTTP(body []byte) ([]byte, error) {
	req, err := http.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	user, pass, err := c.auth()
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(user, pass)

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%v: %s", resp.Status, b)
	}
	return b, nil
}

// auth resolves the Basic-auth credentials to use. The cookie file, when
// configured, takes precedence over explicit Username/Password since
// Bitcoin Core regenerates it on every restart.
func (c *Client) auth() (user, pass string, err error) {
	if c.cfg.CookieFile == "" {
		return c.cfg.Username, c.cfg.Password, nil
	}
	data, err := os.ReadFile(c.cfg.CookieFile)
	if err != nil {
		return "", "", fmt.Errorf("reading cookie file: %v", err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(data)), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed cookie file %q", c.cfg.CookieFile)
	}
	return parts[0], parts[1], nil
}
