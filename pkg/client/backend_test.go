package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agent-chat/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewBackendClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchHistoryDecodesVariants(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/messages" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"messages":[
			{"role":"user","content":"swap 1 ETH to USDC"},
			{"role":"swap","content":{"src":"ETH","src_address":"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE","dst":"USDC","dst_address":"0xa0b8","amount":"1","quote":"3000"}},
			{"role":"assistant","content":"done"}
		]}`))
	})

	messages, err := c.FetchHistory(context.Background())
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	swap, ok := messages[1].(types.SwapMessage)
	if !ok {
		t.Fatalf("expected swap message, got %T", messages[1])
	}
	if swap.Payload.Dst != "USDC" || swap.Payload.SourceAmount() != "1" {
		t.Fatalf("unexpected payload %+v", swap.Payload)
	}
}

func TestPostMessageRefreshesEvenWhenPostFails(t *testing.T) {
	var posted map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
		case "/messages":
			_, _ = w.Write([]byte(`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	messages, err := c.PostMessage(context.Background(), nil, "hi", 1, "0xabc")
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected refreshed history, got %d messages", len(messages))
	}
	if posted["chain_id"] != "1" || posted["wallet_address"] != "0xabc" {
		t.Fatalf("unexpected request body %+v", posted)
	}
	prompt, _ := posted["prompt"].(map[string]any)
	if prompt["role"] != "user" || prompt["content"] != "hi" {
		t.Fatalf("unexpected prompt %+v", prompt)
	}
}

func TestPostMessageFallsBackWhenRefreshFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	history := []types.Message{types.AssistantMessage{Content: "welcome"}}
	messages, err := c.PostMessage(context.Background(), history, "hi", 1, "0x")
	if err == nil {
		t.Fatal("expected error when history cannot be fetched")
	}
	if len(messages) != 2 {
		t.Fatalf("expected optimistic fallback, got %d messages", len(messages))
	}
	if _, ok := messages[1].(types.UserMessage); !ok {
		t.Fatalf("expected user message last, got %T", messages[1])
	}
}

func TestFetchApprovalScalesAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body approveRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Amount != "1500000000000000000" || body.ChainID != 8453 || body.TokenAddress != "0xtoken" {
			t.Fatalf("unexpected approve request %+v", body)
		}
		_, _ = w.Write([]byte(`{"data":{"response":{"data":"0x095ea7b3","gasPrice":"1","to":"0xtoken","value":"0"}}}`))
	})

	tx, err := c.FetchApproval(context.Background(), 8453, "0xtoken", "1.5")
	if err != nil {
		t.Fatalf("fetch approval: %v", err)
	}
	if tx.To != "0xtoken" || tx.Data != "0x095ea7b3" {
		t.Fatalf("unexpected approval %+v", tx)
	}
}

func TestFetchSwapPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body types.SwapTxRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Amount != "100000000000000000" || body.Slippage != 0.5 || body.WalletAddress != "0xme" {
			t.Fatalf("unexpected swap request %+v", body)
		}
		_, _ = w.Write([]byte(`{"dstAmount":"300","tx":{"data":"0x12","from":"0xme","gas":210000,"gasPrice":"5","to":"0xrouter","value":"100000000000000000"}}`))
	})

	tx, err := c.FetchSwapPayload(context.Background(), types.SwapTxRequest{
		Src: "0xsrc", Dst: "0xdst", WalletAddress: "0xme", Amount: "0.1", Slippage: 0.5, ChainID: 1,
	})
	if err != nil {
		t.Fatalf("fetch swap: %v", err)
	}
	if tx.Tx.To != "0xrouter" || tx.Tx.Gas != 210000 || tx.DstAmount != "300" {
		t.Fatalf("unexpected swap payload %+v", tx)
	}
}

func TestReportSwapStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body statusRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Flag != types.SwapCancelled {
			t.Fatalf("unexpected flag %s", body.Flag)
		}
		_, _ = w.Write([]byte(`{"role":"assistant","content":"Swap cancelled."}`))
	})

	msg, err := c.ReportSwapStatus(context.Background(), 1, "0xme", types.SwapCancelled)
	if err != nil {
		t.Fatalf("report status: %v", err)
	}
	if msg.Content != "Swap cancelled." {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"bad token"}`))
	})

	_, err := c.FetchApproval(context.Background(), 1, "0xtoken", "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message != "bad token" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestNewBackendClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewBackendClient("localhost", nil); err == nil {
		t.Fatal("expected error for endpoint without scheme")
	}
}
