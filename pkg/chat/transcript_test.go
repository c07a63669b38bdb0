package chat

import (
	"testing"

	"agent-chat/pkg/types"
)

func TestTranscriptLastSwapIsActive(t *testing.T) {
	tr := NewTranscript([]types.Message{
		types.UserMessage{Content: "swap 1 ETH"},
		types.SwapMessage{Payload: types.SwapPayload{Src: "ETH"}},
		types.AssistantMessage{Content: "try again"},
		types.SwapMessage{Payload: types.SwapPayload{Src: "USDC"}},
		types.AssistantMessage{Content: "anything else?"},
	})

	active, ok := tr.ActiveSwap()
	if !ok || active != 3 {
		t.Fatalf("expected active swap at 3, got %d (%v)", active, ok)
	}
	for i := 0; i < tr.Len(); i++ {
		if tr.IsActive(i) != (i == 3) {
			t.Fatalf("message %d: unexpected active flag", i)
		}
	}
	if tr.LastIsSwap() {
		t.Fatal("last message is not a swap prompt")
	}

	tr.Append(types.SwapMessage{Payload: types.SwapPayload{Src: "DAI"}})
	if !tr.IsActive(5) || tr.IsActive(3) {
		t.Fatal("appended swap should supersede the previous one")
	}
	if !tr.LastIsSwap() {
		t.Fatal("last message should be a swap prompt")
	}

	tr.Append(types.UserMessage{Content: "ok"})
	if !tr.IsActive(5) {
		t.Fatal("text message should not change the active swap")
	}
}

func TestTranscriptWithoutSwaps(t *testing.T) {
	tr := NewTranscript([]types.Message{types.AssistantMessage{Content: "hello"}})
	if _, ok := tr.ActiveSwap(); ok {
		t.Fatal("no swap should be active")
	}

	tr.Replace(nil)
	if tr.Len() != 0 || tr.LastIsSwap() {
		t.Fatal("empty transcript")
	}
}

func TestTranscriptMessagesIsCopy(t *testing.T) {
	tr := NewTranscript([]types.Message{types.UserMessage{Content: "a"}})
	msgs := tr.Messages()
	msgs[0] = types.UserMessage{Content: "b"}
	if types.Text(tr.Messages()[0]) != "a" {
		t.Fatal("transcript mutated through returned slice")
	}
}
