package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeMessages(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"role":"user","content":"swap 1 ETH"}`),
		json.RawMessage(`{"role":"assistant","content":"Here is a quote"}`),
		json.RawMessage(`{"role":"swap","content":{"src":"ETH","src_address":"0xeee","dst":"USDC","dst_address":"0xa0b","amount":"1","src_amount":"0.5","quote":2500,"slippage":0.5}}`),
		json.RawMessage(`{"role":"system","content":null}`),
	}

	messages, err := DecodeMessages(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if user, ok := messages[0].(UserMessage); !ok || user.Content != "swap 1 ETH" {
		t.Fatalf("unexpected user message %#v", messages[0])
	}
	if _, ok := messages[1].(AssistantMessage); !ok {
		t.Fatalf("expected assistant message, got %T", messages[1])
	}
	if sys, ok := messages[3].(SystemMessage); !ok || sys.Content != "" {
		t.Fatalf("unexpected system message %#v", messages[3])
	}

	swap, ok := messages[2].(SwapMessage)
	if !ok {
		t.Fatalf("expected swap message, got %T", messages[2])
	}
	if swap.Payload.SourceAmount() != "0.5" {
		t.Fatalf("src_amount should win over amount, got %s", swap.Payload.SourceAmount())
	}
	if swap.Payload.ProposedSlippage() != 0.5 {
		t.Fatalf("unexpected slippage %v", swap.Payload.ProposedSlippage())
	}
	if v := swap.Payload.EstimatedValue("0.5"); v != 1250 {
		t.Fatalf("unexpected estimate %v", v)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	cases := map[string]string{
		"unknown role":  `{"role":"tool","content":"x"}`,
		"text not text": `{"role":"user","content":{"a":1}}`,
		"bad swap":      `{"role":"swap","content":"nope"}`,
		"not json":      `{`,
	}
	for name, data := range cases {
		if _, err := DecodeMessage([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	_, err := DecodeMessages([]json.RawMessage{json.RawMessage(`{"role":"user","content":"ok"}`), json.RawMessage(`{"role":"x"}`)})
	if err == nil || !strings.Contains(err.Error(), "message 1") {
		t.Fatalf("expected indexed error, got %v", err)
	}
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	slippage := 1.5
	original := SwapMessage{Payload: SwapPayload{Src: "DAI", Dst: "ETH", SrcAmount: "10", Slippage: &slippage}}

	data, err := EncodeMessage(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"role":"swap"`) {
		t.Fatalf("missing role in %s", data)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	swap := decoded.(SwapMessage)
	if swap.Payload.SourceAmount() != "10" || swap.Payload.ProposedSlippage() != 1.5 {
		t.Fatalf("unexpected payload %+v", swap.Payload)
	}
}

func TestSwapPayloadDefaults(t *testing.T) {
	p := SwapPayload{Amount: "3"}
	if p.SourceAmount() != "3" {
		t.Fatalf("expected amount fallback, got %q", p.SourceAmount())
	}
	if p.ProposedSlippage() != DefaultSlippage {
		t.Fatalf("expected default slippage, got %v", p.ProposedSlippage())
	}
	if p.EstimatedValue("3") != 0 {
		t.Fatal("missing quote should give no estimate")
	}
	if _, err := NewTextMessage(RoleSwap, "x"); err == nil {
		t.Fatal("swap role carries no text")
	}
}

func TestSwapQuoteIsLenient(t *testing.T) {
	cases := []struct {
		quote string
		value float64
	}{
		{`"2500.5"`, 2500.5},
		{`2500.5`, 2500.5},
		{`""`, 0},
		{`"1 ETH = 2500 USDC"`, 0},
		{`null`, 0},
		{`"NaN"`, 0},
	}
	for _, tc := range cases {
		raw := []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"swap"}`),
			json.RawMessage(`{"role":"swap","content":{"src":"ETH","dst":"USDC","src_amount":"1","quote":` + tc.quote + `}}`),
		}
		messages, err := DecodeMessages(raw)
		if err != nil {
			t.Fatalf("quote %s: decode: %v", tc.quote, err)
		}
		swap := messages[1].(SwapMessage)
		if got := swap.Payload.EstimatedValue("1"); got != tc.value {
			t.Errorf("quote %s: estimate %v, want %v", tc.quote, got, tc.value)
		}
	}
}
