package corerpc

import "math"

// coin is the number of satoshis in one BTC; getrawmempool reports fees in
// BTC, the rest of this codebase works in satoshis throughout.
const coin = 1e8

// mempoolEntry is the subset of a getrawmempool(true) entry the collector
// needs: transaction weight and base fee (pre-prioritisation, in BTC).
type mempoolEntry struct {
	Weight uint64 `json:"weight"`
	Fees   struct {
		Base float64 `json:"base"`
	} `json:"fees"`
}

// feeSatoshis converts the entry's BTC-denominated base fee to satoshis.
func (e mempoolEntry) feeSatoshis() uint64 {
	return uint64(math.Round(e.Fees.Base * coin))
}

// blockchainInfo is the subset of getblockchaininfo the collector needs.
type blockchainInfo struct {
	Blocks uint32 `json:"blocks"`
}
