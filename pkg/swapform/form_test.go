package swapform

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"agent-chat/pkg/types"
	"agent-chat/pkg/wallet"
)

const usdc = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

type fakeWallet struct {
	allowance *big.Int
	reads     int
	spender   common.Address
}

func (w *fakeWallet) Connected() bool         { return true }
func (w *fakeWallet) Address() common.Address { return common.HexToAddress("0x00000000000000000000000000000000000000aa") }
func (w *fakeWallet) ChainID() int64          { return 8453 }

func (w *fakeWallet) SendTransaction(context.Context, wallet.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not used")
}

func (w *fakeWallet) Allowance(_ context.Context, _, _, spender common.Address) (*big.Int, error) {
	w.reads++
	w.spender = spender
	return new(big.Int).Set(w.allowance), nil
}

func (w *fakeWallet) SubscribeConfirmations(context.Context, common.Hash) (*wallet.Subscription, error) {
	return nil, errors.New("not used")
}

type fakeSource struct {
	approvals []string
	swaps     []types.SwapTxRequest
	block     chan struct{}
}

func (s *fakeSource) FetchApproval(_ context.Context, _ int64, token, amount string) (*types.ApproveTx, error) {
	s.approvals = append(s.approvals, token+":"+amount)
	return &types.ApproveTx{To: token, Data: "0x095ea7b3"}, nil
}

func (s *fakeSource) FetchSwapPayload(_ context.Context, req types.SwapTxRequest) (*types.SwapTx, error) {
	if s.block != nil {
		<-s.block
	}
	s.swaps = append(s.swaps, req)
	return &types.SwapTx{Tx: types.SwapCall{To: DefaultRouter}}, nil
}

type fakeIntents struct {
	mu       sync.Mutex
	approves int
	swaps    int
	cancels  int
}

func (i *fakeIntents) SubmitApprove(context.Context, *types.ApproveTx) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.approves++
	return nil
}

func (i *fakeIntents) SubmitSwap(context.Context, *types.SwapTx) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.swaps++
	return nil
}

func (i *fakeIntents) CancelSwap(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancels++
	return nil
}

func newForm(payload types.SwapPayload, allowance int64) (*Form, *fakeWallet, *fakeSource, *fakeIntents) {
	w := &fakeWallet{allowance: big.NewInt(allowance)}
	src := &fakeSource{}
	intents := &fakeIntents{}
	f := New(payload, true, Deps{Wallet: w, Source: src, Intents: intents})
	return f, w, src, intents
}

func TestSeedDefaults(t *testing.T) {
	f, _, _, _ := newForm(types.SwapPayload{Amount: "1", SrcAmount: "2", SrcAddress: usdc}, 0)
	if f.Amount() != "2" {
		t.Fatalf("expected src_amount to win, got %q", f.Amount())
	}
	if f.Slippage() != types.DefaultSlippage {
		t.Fatalf("expected default slippage, got %v", f.Slippage())
	}

	slippage := 0.5
	f.Seed(types.SwapPayload{Amount: "3", Slippage: &slippage})
	if f.Amount() != "3" || f.Slippage() != 0.5 {
		t.Fatalf("reseed: amount=%q slippage=%v", f.Amount(), f.Slippage())
	}
}

func TestNativeSourceAlwaysSwaps(t *testing.T) {
	f, w, src, intents := newForm(types.SwapPayload{
		SrcAddress: "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
		DstAddress: usdc,
		Amount:     "1",
	}, 0)

	if !f.IsNative() {
		t.Fatal("lower-case sentinel should be native")
	}
	if _, err := f.RefreshAllowance(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if w.reads != 0 {
		t.Fatal("allowance should not be read for native source")
	}
	if f.Action() != ActionSwap {
		t.Fatalf("expected Swap, got %s", f.Action())
	}

	action, err := f.Submit(context.Background())
	if err != nil || action != ActionSwap {
		t.Fatalf("submit: %s %v", action, err)
	}
	if intents.swaps != 1 || len(src.swaps) != 1 {
		t.Fatalf("expected one swap submission")
	}
	req := src.swaps[0]
	if req.ChainID != 8453 || req.Slippage != types.DefaultSlippage || req.WalletAddress != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("unexpected swap request %+v", req)
	}
}

func TestApproveUntilAllowanceCovers(t *testing.T) {
	f, w, src, intents := newForm(types.SwapPayload{SrcAddress: usdc, Amount: "1.5"}, 0)
	ctx := context.Background()

	if f.Action() != ActionApprove {
		t.Fatal("unknown allowance should require approval")
	}
	if _, err := f.RefreshAllowance(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if w.spender != common.HexToAddress(DefaultRouter) {
		t.Fatalf("allowance read for wrong spender %s", w.spender.Hex())
	}
	if f.Action() != ActionApprove {
		t.Fatal("zero allowance should require approval")
	}

	action, err := f.Submit(ctx)
	if err != nil || action != ActionApprove {
		t.Fatalf("submit: %s %v", action, err)
	}
	if intents.approves != 1 || src.approvals[0] != usdc+":1.5" {
		t.Fatalf("unexpected approvals %v", src.approvals)
	}

	w.allowance, _ = new(big.Int).SetString("1500000000000000000", 10)
	if _, err := f.RefreshAllowance(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if f.Action() != ActionSwap {
		t.Fatal("covering allowance should allow swap")
	}

	if err := f.SetAmount("2"); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	if f.Action() != ActionApprove {
		t.Fatal("raising amount above allowance should require approval")
	}
}

func TestSubmitRejectsInactiveAndBusy(t *testing.T) {
	f, _, src, _ := newForm(types.SwapPayload{SrcAddress: NativeToken, Amount: "1"}, 0)

	f.SetActive(false)
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	f.SetActive(true)

	src.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	for !f.Loading() {
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(src.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if f.Loading() {
		t.Fatal("loading flag not cleared")
	}
}

func TestEditValidation(t *testing.T) {
	f, _, _, intents := newForm(types.SwapPayload{SrcAddress: usdc, Amount: "1", Quote: "3000"}, 0)

	if err := f.SetAmount("abc"); err == nil {
		t.Fatal("expected invalid amount error")
	}
	if err := f.SetAmount("0"); err == nil {
		t.Fatal("expected zero amount error")
	}
	if err := f.SetSlippage("75"); err == nil {
		t.Fatal("expected slippage range error")
	}
	if err := f.SetSlippage("1"); err != nil || f.Slippage() != 1 {
		t.Fatalf("set slippage: %v", err)
	}
	if v := f.EstimatedValue(); v != 3000 {
		t.Fatalf("expected estimate 3000, got %v", v)
	}

	if err := f.Cancel(context.Background()); err != nil || intents.cancels != 1 {
		t.Fatalf("cancel: %v (%d)", err, intents.cancels)
	}
}
