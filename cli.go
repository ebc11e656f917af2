package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/douglaz/feeaugur/engine"
)

// apiClient is a thin HTTP client for the REST surface the daemon exposes,
// the successor to the teacher's gorilla/rpc api.Client.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(cfg config) *apiClient {
	return &apiClient{
		baseURL: "http://" + cfg.HTTPServer.Host + ":" + cfg.HTTPServer.Port,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) get(path string) (*http.Response, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("contacting %s: %v", c.baseURL, err)
	}
	return resp, nil
}

func (c *apiClient) health() (string, error) {
	resp, err := c.get("/health")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}

func (c *apiClient) fees(numBlocks int) (engine.FeeEstimate, error) {
	path := "/fees"
	if numBlocks > 0 {
		path = "/fees/target/" + strconv.Itoa(numBlocks)
	}
	resp, err := c.get(path)
	if err != nil {
		return engine.FeeEstimate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return engine.FeeEstimate{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	var estimate engine.FeeEstimate
	if err := json.NewDecoder(resp.Body).Decode(&estimate); err != nil {
		return engine.FeeEstimate{}, fmt.Errorf("decoding response: %v", err)
	}
	return estimate, nil
}

func status(args []string, c *apiClient) {
	const usage = `
feeaugur status

Report whether the daemon is reachable and serving estimates.
`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	body, err := c.health()
	if err != nil {
		fmt.Println("unreachable:", err)
		os.Exit(1)
	}
	fmt.Println(body)
}

func estimateFee(args []string, c *apiClient) {
	const usage = `
feeaugur estimatefee [N]

Returns the fee rate (sat/vB) required for confirmation in N blocks, at
every configured confidence level. If N is omitted, every configured block
target is reported.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	var n int
	if nStr := f.Arg(0); nStr != "" {
		var err error
		n, err = strconv.Atoi(nStr)
		if err != nil {
			log.Fatal(err)
		}
	}

	estimate, err := c.fees(n)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("mempool_update_time: %s\n", estimate.MempoolUpdateTime.Format(time.RFC3339))
	for _, blocks := range sortedBlockTargets(estimate) {
		target := estimate.Estimates[blocks]
		fmt.Printf("%6.0f blocks:\n", blocks)
		for _, p := range sortedProbabilities(target) {
			fmt.Printf("  %4.2f: %10.2f sat/vB\n", p, target.Probabilities[p])
		}
	}
}

func appConfig(args []string, cfg config) {
	const usage = `
feeaugur config

Show the loaded daemon configuration.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	c := cfg
	c.BitcoinRPC.Password = "********"
	b, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

func sortedBlockTargets(e engine.FeeEstimate) []float64 {
	out := make([]float64, 0, len(e.Estimates))
	for blocks := range e.Estimates {
		out = append(out, blocks)
	}
	sort.Float64s(out)
	return out
}

func sortedProbabilities(t engine.BlockTarget) []float64 {
	out := make([]float64, 0, len(t.Probabilities))
	for p := range t.Probabilities {
		out = append(out, p)
	}
	sort.Float64s(out)
	return out
}
