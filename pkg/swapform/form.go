package swapform

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"agent-chat/pkg/parser"
	"agent-chat/pkg/types"
	"agent-chat/pkg/wallet"
)

const (
	// DefaultRouter is the aggregation router the approval is granted to
	DefaultRouter = "0x111111125421cA6dc452d289314280a0f8842A65"
	// NativeToken marks the chain's native asset in swap proposals
	NativeToken = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
)

var (
	// ErrBusy is returned when a submit is already in flight
	ErrBusy = errors.New("swap form is busy")
	// ErrInactive is returned when acting on a superseded swap prompt
	ErrInactive = errors.New("swap prompt is no longer active")
)

// Action is what submitting the form will do
type Action int

const (
	ActionApprove Action = iota
	ActionSwap
)

func (a Action) String() string {
	if a == ActionSwap {
		return "Swap"
	}
	return "Approve"
}

// Intents receives the transactions the form produces
type Intents interface {
	SubmitApprove(ctx context.Context, tx *types.ApproveTx) error
	SubmitSwap(ctx context.Context, tx *types.SwapTx) error
	CancelSwap(ctx context.Context) error
}

// PayloadSource builds approval and swap transactions
type PayloadSource interface {
	FetchApproval(ctx context.Context, chainID int64, token, amount string) (*types.ApproveTx, error)
	FetchSwapPayload(ctx context.Context, req types.SwapTxRequest) (*types.SwapTx, error)
}

// Deps wires a form to its collaborators
type Deps struct {
	Wallet  wallet.Wallet
	Source  PayloadSource
	Intents Intents
	// Router and Native default to DefaultRouter and NativeToken
	Router string
	Native string
}

// Form is the editable state behind one swap prompt
type Form struct {
	mu        sync.Mutex
	payload   types.SwapPayload
	active    bool
	amount    string
	slippage  float64
	allowance *big.Int
	loading   bool

	wallet  wallet.Wallet
	source  PayloadSource
	intents Intents
	router  common.Address
	native  string
}

// New creates a form seeded from payload
func New(payload types.SwapPayload, active bool, deps Deps) *Form {
	router := deps.Router
	if router == "" {
		router = DefaultRouter
	}
	native := deps.Native
	if native == "" {
		native = NativeToken
	}
	w := deps.Wallet
	if w == nil {
		w = wallet.NewDisconnected(0)
	}

	f := &Form{
		active:  active,
		wallet:  w,
		source:  deps.Source,
		intents: deps.Intents,
		router:  common.HexToAddress(router),
		native:  native,
	}
	f.Seed(payload)
	return f
}

// Seed replaces the payload and resets the editable fields from it
func (f *Form) Seed(payload types.SwapPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.payload = payload
	f.amount = payload.SourceAmount()
	f.slippage = payload.ProposedSlippage()
	f.allowance = nil
}

func (f *Form) Payload() types.SwapPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload
}

func (f *Form) Amount() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amount
}

func (f *Form) Slippage() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slippage
}

// Active reports whether the form still accepts actions
func (f *Form) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// SetActive marks the form live or superseded
func (f *Form) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

// Loading reports whether a submit is in flight
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// SetAmount replaces the amount to sell
func (f *Form) SetAmount(amount string) error {
	amount = strings.TrimSpace(amount)
	if err := parser.ValidateAmount(amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amount = amount
	return nil
}

// SetSlippage replaces the slippage tolerance, in percent
func (f *Form) SetSlippage(value string) error {
	slippage, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid slippage: %w", err)
	}
	if slippage < 0 || slippage > 50 {
		return fmt.Errorf("slippage must be between 0 and 50")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slippage = slippage
	return nil
}

// IsNative reports whether the source token is the chain's native asset
func (f *Form) IsNative() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isNative()
}

func (f *Form) isNative() bool {
	return strings.EqualFold(f.payload.SrcAddress, f.native)
}

// EstimatedValue returns amount * quote for the current amount
func (f *Form) EstimatedValue() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload.EstimatedValue(f.amount)
}

// ScaledAmount returns the current amount in base units
func (f *Form) ScaledAmount() (*big.Int, error) {
	return parser.ScaleTokenAmount(f.Amount())
}

// RefreshAllowance re-reads the router allowance for the source token.
// Native sources need no allowance and are skipped.
func (f *Form) RefreshAllowance(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	native := f.isNative()
	token := f.payload.SrcAddress
	f.mu.Unlock()

	if native {
		return nil, nil
	}
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid source token address %q", token)
	}

	allowance, err := f.wallet.Allowance(ctx, common.HexToAddress(token), f.wallet.Address(), f.router)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	f.mu.Lock()
	f.allowance = allowance
	f.mu.Unlock()
	return allowance, nil
}

// Action returns Swap when no approval is needed, otherwise Approve
func (f *Form) Action() Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.action()
}

func (f *Form) action() Action {
	if f.isNative() {
		return ActionSwap
	}
	if f.allowance == nil {
		return ActionApprove
	}
	scaled, err := parser.ScaleTokenAmount(f.amount)
	if err != nil {
		return ActionApprove
	}
	if f.allowance.Cmp(scaled) >= 0 {
		return ActionSwap
	}
	return ActionApprove
}

// Submit fetches the transaction for the current action and hands it to the
// intent sink. It returns the action that was taken.
func (f *Form) Submit(ctx context.Context) (Action, error) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return 0, ErrInactive
	}
	if f.loading {
		f.mu.Unlock()
		return 0, ErrBusy
	}
	if err := parser.ValidateAmount(f.amount); err != nil {
		f.mu.Unlock()
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	f.loading = true
	action := f.action()
	payload := f.payload
	amount := f.amount
	slippage := f.slippage
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
	}()

	chainID := f.wallet.ChainID()
	switch action {
	case ActionApprove:
		tx, err := f.source.FetchApproval(ctx, chainID, payload.SrcAddress, amount)
		if err != nil {
			return action, err
		}
		return action, f.intents.SubmitApprove(ctx, tx)
	default:
		tx, err := f.source.FetchSwapPayload(ctx, types.SwapTxRequest{
			Src:           payload.SrcAddress,
			Dst:           payload.DstAddress,
			WalletAddress: wallet.AddressString(f.wallet),
			Amount:        amount,
			Slippage:      slippage,
			ChainID:       chainID,
		})
		if err != nil {
			return action, err
		}
		return action, f.intents.SubmitSwap(ctx, tx)
	}
}

// Cancel asks the intent sink to cancel the swap
func (f *Form) Cancel(ctx context.Context) error {
	return f.intents.CancelSwap(ctx)
}
