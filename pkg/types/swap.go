package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultSlippage is used when a swap proposal carries no slippage
const DefaultSlippage = 0.1

// SwapStatus is the flag reported to the agent once a swap ends
type SwapStatus string

const (
	SwapCancelled SwapStatus = "cancel"
	SwapSucceeded SwapStatus = "success"
	SwapFailed    SwapStatus = "fail"
)

// SwapPayload is the swap proposal attached to a swap message
type SwapPayload struct {
	Src        string      `json:"src"`
	SrcAddress string      `json:"src_address"`
	Dst        string      `json:"dst"`
	DstAddress string      `json:"dst_address"`
	Amount     string      `json:"amount,omitempty"`
	SrcAmount  string      `json:"src_amount,omitempty"`
	DstAmount  string      `json:"dst_amount,omitempty"`
	Quote      Quote       `json:"quote,omitempty"`
	Slippage   *float64    `json:"slippage,omitempty"`
}

// SourceAmount returns the amount of source token to sell. Older agents
// send it as "amount", newer ones as "src_amount"; src_amount wins.
func (p SwapPayload) SourceAmount() string {
	if p.SrcAmount != "" {
		return p.SrcAmount
	}
	return p.Amount
}

// ProposedSlippage returns the proposed slippage or DefaultSlippage
func (p SwapPayload) ProposedSlippage() float64 {
	if p.Slippage != nil {
		return *p.Slippage
	}
	return DefaultSlippage
}

// EstimatedValue returns amount * quote, or 0 when either does not parse
func (p SwapPayload) EstimatedValue(amount string) float64 {
	a, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	q, ok := p.Quote.Float64()
	if !ok {
		return 0
	}
	return a * q
}

// Quote is the unit price of the source token. Agents send it as a JSON
// string or number, and it may be free text; decoding never fails.
type Quote string

// UnmarshalJSON accepts a string, a number or null
func (q *Quote) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*q = Quote(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*q = Quote(n)
		return nil
	}
	*q = ""
	return nil
}

// Float64 parses the quote, reporting false when it is not a number
func (q Quote) Float64() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(q)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ApproveTx is the ERC-20 approval transaction returned by /approve
type ApproveTx struct {
	Data     string `json:"data"`
	GasPrice string `json:"gasPrice,omitempty"`
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
}

// SwapTx is the router swap transaction returned by /swap
type SwapTx struct {
	DstAmount string   `json:"dstAmount"`
	Tx        SwapCall `json:"tx"`
}

// SwapCall is the chain-ready call inside a SwapTx
type SwapCall struct {
	Data     string `json:"data"`
	From     string `json:"from"`
	Gas      uint64 `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
}

// SwapTxRequest holds the parameters sent to /swap
type SwapTxRequest struct {
	Src           string  `json:"src"`
	Dst           string  `json:"dst"`
	WalletAddress string  `json:"walletAddress"`
	Amount        string  `json:"amount"`
	Slippage      float64 `json:"slippage"`
	ChainID       int64   `json:"chain_id"`
}
