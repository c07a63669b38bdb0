package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"agent-chat/pkg/types"
)

var (
	// ErrNotConnected is returned when a transaction is requested without a wallet
	ErrNotConnected = errors.New("wallet not connected")
	// ErrReverted is delivered on a confirmation subscription when the
	// transaction was mined but failed
	ErrReverted = errors.New("transaction reverted")
)

// TxRequest is a raw transaction handed to the wallet for signing
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// Wallet is the boundary between the chat flow and the chain
type Wallet interface {
	Connected() bool
	Address() common.Address
	ChainID() int64
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	SubscribeConfirmations(ctx context.Context, hash common.Hash) (*Subscription, error)
}

// AddressString returns the lower-case hex address sent to agents, or "0x"
// when no wallet is connected
func AddressString(w Wallet) string {
	if w == nil || !w.Connected() {
		return "0x"
	}
	return strings.ToLower(w.Address().Hex())
}

// TxRequestFromApprove converts an approval payload into a wallet request
func TxRequestFromApprove(tx *types.ApproveTx) (TxRequest, error) {
	if tx == nil {
		return TxRequest{}, fmt.Errorf("approval payload is empty")
	}
	return buildRequest(tx.To, tx.Data, tx.Value, tx.GasPrice, 0)
}

// TxRequestFromSwap converts a swap payload into a wallet request
func TxRequestFromSwap(tx *types.SwapTx) (TxRequest, error) {
	if tx == nil {
		return TxRequest{}, fmt.Errorf("swap payload is empty")
	}
	return buildRequest(tx.Tx.To, tx.Tx.Data, tx.Tx.Value, tx.Tx.GasPrice, tx.Tx.Gas)
}

func buildRequest(to, data, value, gasPrice string, gas uint64) (TxRequest, error) {
	if !common.IsHexAddress(to) {
		return TxRequest{}, fmt.Errorf("invalid transaction target: %q", to)
	}

	req := TxRequest{
		To:   common.HexToAddress(to),
		Data: common.FromHex(data),
		Gas:  gas,
	}

	var err error
	if req.Value, err = parseBig(value); err != nil {
		return TxRequest{}, fmt.Errorf("invalid value: %w", err)
	}
	if gasPrice != "" {
		if req.GasPrice, err = parseBig(gasPrice); err != nil {
			return TxRequest{}, fmt.Errorf("invalid gas price: %w", err)
		}
	}
	return req, nil
}

// parseBig accepts decimal or 0x-prefixed hex integers; empty means zero
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			return new(big.Int), nil
		}
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not an unsigned integer: %q", s)
	}
	return n, nil
}

// Disconnected is the wallet used when no signing key is configured
type Disconnected struct {
	chainID int64
}

// NewDisconnected returns a wallet that cannot sign on chainID
func NewDisconnected(chainID int64) *Disconnected {
	return &Disconnected{chainID: chainID}
}

func (d *Disconnected) Connected() bool         { return false }
func (d *Disconnected) Address() common.Address { return common.Address{} }
func (d *Disconnected) ChainID() int64          { return d.chainID }

func (d *Disconnected) SendTransaction(context.Context, TxRequest) (common.Hash, error) {
	return common.Hash{}, ErrNotConnected
}

func (d *Disconnected) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return new(big.Int), nil
}

func (d *Disconnected) SubscribeConfirmations(context.Context, common.Hash) (*Subscription, error) {
	return nil, ErrNotConnected
}
