package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"agent-chat/pkg/logger"
	"agent-chat/pkg/types"
	"agent-chat/pkg/wallet"
)

const (
	DefaultMinConfirmations    = 1
	DefaultConfirmationTimeout = 5 * time.Minute
	DefaultReportTimeout       = 30 * time.Second
)

var (
	// ErrTxPending is returned when a transaction is submitted while another
	// is still being signed or confirmed
	ErrTxPending = errors.New("a transaction is already pending")
	// ErrInputDisabled is returned when a message is sent while the agent is
	// busy or a swap prompt awaits an answer
	ErrInputDisabled = errors.New("input is disabled")
	// ErrNoBackend is returned before an agent has been selected
	ErrNoBackend = errors.New("no agent selected")
)

// TxState is the lifecycle of the pending swap transaction
type TxState int

const (
	StateIdle TxState = iota
	StateAwaitingSignature
	StateAwaitingConfirmation
	StateSettled
)

func (s TxState) String() string {
	switch s {
	case StateAwaitingSignature:
		return "awaiting signature"
	case StateAwaitingConfirmation:
		return "awaiting confirmation"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

// Backend is the agent API the controller drives
type Backend interface {
	FetchHistory(ctx context.Context) ([]types.Message, error)
	PostMessage(ctx context.Context, history []types.Message, text string, chainID int64, address string) ([]types.Message, error)
	FetchApproval(ctx context.Context, chainID int64, token, amount string) (*types.ApproveTx, error)
	FetchSwapPayload(ctx context.Context, req types.SwapTxRequest) (*types.SwapTx, error)
	ReportSwapStatus(ctx context.Context, chainID int64, wallet string, status types.SwapStatus) (types.AssistantMessage, error)
}

// ControllerConfig tunes the confirmation flow
type ControllerConfig struct {
	MinConfirmations    uint64
	ConfirmationTimeout time.Duration
	ReportTimeout       time.Duration
}

// Snapshot is a consistent view of the controller for rendering
type Snapshot struct {
	Messages   []types.Message
	ActiveSwap int
	State      TxState
	TxHash     common.Hash
	Busy       bool
	Disabled   bool
}

// Controller owns the transcript of one agent and the pending swap
// transaction. It is safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	backend    Backend
	wallet     wallet.Wallet
	transcript *Transcript

	state        TxState
	txHash       common.Hash
	callbackSent bool
	sub          *wallet.Subscription
	busy         bool
	lastStatus   types.SwapStatus
	// generation is bumped on reset; late results from older generations
	// are dropped
	generation uint64

	changed chan struct{}

	minConfirmations    uint64
	confirmationTimeout time.Duration
	reportTimeout       time.Duration
	log                 *slog.Logger
}

// NewController creates a controller bound to w. The backend is set with
// SetBackend.
func NewController(w wallet.Wallet, cfg ControllerConfig) *Controller {
	if w == nil {
		w = wallet.NewDisconnected(0)
	}
	if cfg.MinConfirmations == 0 {
		cfg.MinConfirmations = DefaultMinConfirmations
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	return &Controller{
		wallet:              w,
		transcript:          NewTranscript(nil),
		changed:             make(chan struct{}),
		minConfirmations:    cfg.MinConfirmations,
		confirmationTimeout: cfg.ConfirmationTimeout,
		reportTimeout:       cfg.ReportTimeout,
		log:                 logger.Named("chat"),
	}
}

// Updates returns a channel that is closed on the next state change. Callers
// fetch a fresh channel after each wake-up.
func (c *Controller) Updates() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// notifyLocked wakes every Updates waiter; c.mu must be held
func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// Wallet returns the wallet the controller signs with
func (c *Controller) Wallet() wallet.Wallet { return c.wallet }

// Backend returns the current agent backend
func (c *Controller) Backend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// SetBackend points the controller at another agent. Pending transaction
// state is discarded and the transcript cleared.
func (c *Controller) SetBackend(b Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.backend = b
	c.transcript.Replace(nil)
	c.notifyLocked()
}

// Reset discards pending transaction state
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.notifyLocked()
}

func (c *Controller) resetLocked() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.generation++
	c.sub = nil
	c.state = StateIdle
	c.txHash = common.Hash{}
	c.callbackSent = false
	c.busy = false
}

// Snapshot returns the current transcript and flags
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	active, ok := c.transcript.ActiveSwap()
	if !ok {
		active = -1
	}
	return Snapshot{
		Messages:   c.transcript.Messages(),
		ActiveSwap: active,
		State:      c.state,
		TxHash:     c.txHash,
		Busy:       c.busy,
		Disabled:   c.inputDisabledLocked(),
	}
}

func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Messages()
}

func (c *Controller) State() TxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastStatus returns the outcome of the most recently settled transaction
func (c *Controller) LastStatus() types.SwapStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// TxHash returns the hash awaiting confirmation, if any
func (c *Controller) TxHash() common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txHash
}

// InputDisabled reports whether free-text input should be refused
func (c *Controller) InputDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputDisabledLocked()
}

func (c *Controller) inputDisabledLocked() bool {
	return c.busy || c.transcript.LastIsSwap()
}

// Load replaces the transcript with the agent's history
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	backend, gen := c.backend, c.generation
	c.mu.Unlock()
	if backend == nil {
		return ErrNoBackend
	}

	messages, err := backend.FetchHistory(ctx)
	if err != nil {
		c.log.Warn("loading history failed", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.transcript.Replace(messages)
		c.notifyLocked()
	}
	return nil
}

// SubmitMessage sends text to the agent. The user message is shown at once
// and the transcript is replaced with the agent's copy when it answers.
func (c *Controller) SubmitMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.backend == nil {
		c.mu.Unlock()
		return ErrNoBackend
	}
	if c.inputDisabledLocked() {
		c.mu.Unlock()
		return ErrInputDisabled
	}
	backend, gen := c.backend, c.generation
	history := c.transcript.Messages()
	c.transcript.Append(types.UserMessage{Content: text})
	c.busy = true
	c.notifyLocked()
	c.mu.Unlock()

	messages, err := backend.PostMessage(ctx, history, text, c.wallet.ChainID(), wallet.AddressString(c.wallet))

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return err
	}
	if messages != nil {
		c.transcript.Replace(messages)
	}
	c.busy = false
	c.notifyLocked()
	if err != nil {
		return fmt.Errorf("failed to refresh messages: %w", err)
	}
	return nil
}

// SubmitApprove signs and broadcasts an approval transaction
func (c *Controller) SubmitApprove(ctx context.Context, tx *types.ApproveTx) error {
	req, err := wallet.TxRequestFromApprove(tx)
	if err != nil {
		return err
	}
	return c.submitTx(ctx, req)
}

// SubmitSwap signs and broadcasts a router swap transaction
func (c *Controller) SubmitSwap(ctx context.Context, tx *types.SwapTx) error {
	req, err := wallet.TxRequestFromSwap(tx)
	if err != nil {
		return err
	}
	return c.submitTx(ctx, req)
}

func (c *Controller) submitTx(ctx context.Context, req wallet.TxRequest) error {
	c.mu.Lock()
	if c.backend == nil {
		c.mu.Unlock()
		return ErrNoBackend
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrTxPending
	}
	c.state = StateAwaitingSignature
	gen := c.generation
	c.notifyLocked()
	c.mu.Unlock()

	hash, err := c.wallet.SendTransaction(ctx, req)
	if err != nil {
		c.log.Warn("transaction rejected", "error", err)
		c.settle(gen, common.Hash{}, types.SwapFailed)
		return fmt.Errorf("transaction failed: %w", err)
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.state = StateAwaitingConfirmation
	c.txHash = hash
	c.callbackSent = false
	c.notifyLocked()
	c.mu.Unlock()

	c.log.Info("waiting for confirmation", "hash", hash.Hex())

	sub, err := c.wallet.SubscribeConfirmations(context.Background(), hash)
	if err != nil {
		c.log.Warn("subscribing to confirmations failed", "hash", hash.Hex(), "error", err)
		c.settle(gen, hash, types.SwapFailed)
		return fmt.Errorf("failed to watch transaction: %w", err)
	}

	c.mu.Lock()
	if gen != c.generation || c.txHash != hash || c.callbackSent {
		c.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	c.sub = sub
	c.mu.Unlock()

	go c.watch(gen, hash, sub)
	return nil
}

func (c *Controller) watch(gen uint64, hash common.Hash, sub *wallet.Subscription) {
	timer := time.NewTimer(c.confirmationTimeout)
	defer timer.Stop()

	for {
		select {
		case n := <-sub.Confirmations():
			if c.ObserveConfirmations(hash, n) {
				return
			}
		case err := <-sub.Err():
			c.log.Warn("transaction failed on chain", "hash", hash.Hex(), "error", err)
			c.settle(gen, hash, types.SwapFailed)
			return
		case <-timer.C:
			c.log.Warn("confirmation timed out", "hash", hash.Hex(), "timeout", c.confirmationTimeout)
			c.settle(gen, hash, types.SwapFailed)
			return
		case <-sub.Done():
			return
		}
	}
}

// ObserveConfirmations records a confirmation count for hash. The first
// count reaching the threshold for the pending hash reports success; every
// later call, and calls for other hashes, are ignored. It returns true when
// this call settled the transaction.
func (c *Controller) ObserveConfirmations(hash common.Hash, n uint64) bool {
	c.mu.Lock()
	if c.state != StateAwaitingConfirmation || hash != c.txHash || c.callbackSent || n < c.minConfirmations {
		c.mu.Unlock()
		return false
	}
	gen := c.generation
	c.mu.Unlock()

	return c.settle(gen, hash, types.SwapSucceeded)
}

// settle latches the outcome of the pending transaction, reports it and
// returns to Idle. A zero hash settles a transaction that was never sent.
// It returns false when the outcome was already latched.
func (c *Controller) settle(gen uint64, hash common.Hash, status types.SwapStatus) bool {
	c.mu.Lock()
	if gen != c.generation || c.callbackSent || c.state == StateIdle || hash != c.txHash {
		c.mu.Unlock()
		return false
	}
	c.callbackSent = true
	c.state = StateSettled
	sub := c.sub
	c.sub = nil
	backend := c.backend
	c.notifyLocked()
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.reportTimeout)
	defer cancel()
	reply, err := backend.ReportSwapStatus(ctx, c.wallet.ChainID(), wallet.AddressString(c.wallet), status)
	if err != nil {
		c.log.Warn("reporting swap status failed", "status", status, "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return true
	}
	if err == nil {
		c.transcript.Append(reply)
	}
	c.lastStatus = status
	c.state = StateIdle
	c.txHash = common.Hash{}
	c.callbackSent = false
	c.notifyLocked()
	return true
}

// CancelSwap tells the agent the swap was declined and reloads the history.
// A failed report is logged; the reload happens regardless.
func (c *Controller) CancelSwap(ctx context.Context) error {
	backend := c.Backend()
	if backend == nil {
		return ErrNoBackend
	}

	if _, err := backend.ReportSwapStatus(ctx, c.wallet.ChainID(), wallet.AddressString(c.wallet), types.SwapCancelled); err != nil {
		c.log.Warn("reporting cancellation failed", "error", err)
	}
	return c.Load(ctx)
}

// WaitIdle blocks until no transaction is pending or ctx ends
func (c *Controller) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()
		if state == StateIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
