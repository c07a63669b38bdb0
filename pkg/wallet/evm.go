package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"agent-chat/pkg/logger"
)

// DefaultPollInterval is how often confirmation counts are re-read
const DefaultPollInterval = 4 * time.Second

// Backend is the subset of an EVM node client the wallet needs
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// EVMConfig configures a key-backed wallet
type EVMConfig struct {
	RPCURL       string
	PrivateKey   string
	ChainID      int64
	GasLimit     *uint64
	GasPrice     *int64
	PollInterval time.Duration
}

// EVMWallet signs and broadcasts transactions with a local private key
type EVMWallet struct {
	backend      Backend
	closer       func()
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	gasLimit     *uint64
	gasPrice     *int64
	pollInterval time.Duration
	log          *slog.Logger
}

// DialEVM connects to the configured RPC endpoint and loads the signing key
func DialEVM(ctx context.Context, cfg EVMConfig) (*EVMWallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	w, err := NewEVMWallet(ctx, client, privateKey, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.closer = client.Close
	return w, nil
}

// NewEVMWallet wraps an existing backend. When cfg.ChainID is zero the chain
// id is read from the backend.
func NewEVMWallet(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey, cfg EVMConfig) (*EVMWallet, error) {
	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		chainID = id
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	return &EVMWallet{
		backend:      backend,
		privateKey:   privateKey,
		address:      address,
		chainID:      chainID,
		gasLimit:     cfg.GasLimit,
		gasPrice:     cfg.GasPrice,
		pollInterval: pollInterval,
		log:          logger.Named("wallet").With("address", address.Hex(), "chain_id", chainID.String()),
	}, nil
}

func (e *EVMWallet) Connected() bool         { return true }
func (e *EVMWallet) Address() common.Address { return e.address }
func (e *EVMWallet) ChainID() int64          { return e.chainID.Int64() }

// SendTransaction signs req and broadcasts it
func (e *EVMWallet) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	nonce, err := e.backend.PendingNonceAt(ctx, e.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := e.getGasPrice(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit, err := e.getGasLimit(ctx, req, value)
	if err != nil {
		return common.Hash{}, err
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signedTx, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(e.chainID), e.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	e.log.Info("transaction sent", "hash", signedTx.Hash().Hex(), "to", req.To.Hex(), "value", value.String(), "gas", gasLimit)
	return signedTx.Hash(), nil
}

// getGasPrice prefers the payload's price, then the configured one, then the node's
func (e *EVMWallet) getGasPrice(ctx context.Context, req TxRequest) (*big.Int, error) {
	if req.GasPrice != nil && req.GasPrice.Sign() > 0 {
		return req.GasPrice, nil
	}
	if e.gasPrice != nil {
		return big.NewInt(*e.gasPrice), nil
	}

	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (e *EVMWallet) getGasLimit(ctx context.Context, req TxRequest, value *big.Int) (uint64, error) {
	if req.Gas > 0 {
		return req.Gas, nil
	}
	if e.gasLimit != nil {
		return *e.gasLimit, nil
	}

	msg := ethereum.CallMsg{
		From:  e.address,
		To:    &req.To,
		Value: value,
		Data:  req.Data,
	}
	estimatedGas, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimatedGas * 120 / 100, nil // 20% buffer
}

// Allowance reads the ERC-20 allowance of owner for spender
func (e *EVMWallet) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return ReadAllowance(ctx, e.backend, token, owner, spender)
}

// ReceiptReader is the subset of a chain client used to count confirmations
type ReceiptReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// errIndexing is the node's answer to a receipt lookup while its transaction
// indexer is still catching up
const errIndexing = "transaction indexing is in progress"

// receiptPending reports whether a receipt lookup error means the
// transaction is simply not mined or not indexed yet
func receiptPending(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ethereum.NotFound) || strings.Contains(err.Error(), errIndexing)
}

// CountConfirmations returns how many blocks include hash, 0 while pending.
// The receipt is nil until the transaction is mined.
func CountConfirmations(ctx context.Context, reader ReceiptReader, hash common.Hash) (uint64, *gethtypes.Receipt, error) {
	receipt, err := reader.TransactionReceipt(ctx, hash)
	if receiptPending(err) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	head, err := reader.BlockNumber(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get block number: %w", err)
	}

	mined := receipt.BlockNumber.Uint64()
	if head < mined {
		return 0, receipt, nil
	}
	return head - mined + 1, receipt, nil
}

// Confirmations returns how many blocks include hash, 0 while pending
func (e *EVMWallet) Confirmations(ctx context.Context, hash common.Hash) (uint64, *gethtypes.Receipt, error) {
	return CountConfirmations(ctx, e.backend, hash)
}

// SubscribeConfirmations polls the confirmation count of hash until the
// subscription is cancelled
func (e *EVMWallet) SubscribeConfirmations(ctx context.Context, hash common.Hash) (*Subscription, error) {
	sub := NewSubscription(ctx)
	go e.pollConfirmations(sub, hash)
	return sub, nil
}

func (e *EVMWallet) pollConfirmations(sub *Subscription, hash common.Hash) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	ctx := sub.Context()
	for {
		count, receipt, err := e.Confirmations(ctx, hash)
		switch {
		case err != nil:
			// transient, retried on the next tick
			e.log.Debug("confirmation check failed", "hash", hash.Hex(), "error", err)
		case receipt != nil && receipt.Status == gethtypes.ReceiptStatusFailed:
			sub.Fail(fmt.Errorf("%w: %s", ErrReverted, hash.Hex()))
			return
		default:
			if !sub.Publish(count) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close closes the client connection
func (e *EVMWallet) Close() {
	if e.closer != nil {
		e.closer()
	}
}
