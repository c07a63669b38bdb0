package chat

import "agent-chat/pkg/types"

// Transcript is an ordered message list that tracks which swap prompt is
// interactive. Only the last swap message is active; every earlier one is
// history. Transcript is not safe for concurrent use.
type Transcript struct {
	messages []types.Message
	active   int
}

// NewTranscript returns a transcript holding messages
func NewTranscript(messages []types.Message) *Transcript {
	t := &Transcript{}
	t.Replace(messages)
	return t
}

// Replace swaps the whole message list
func (t *Transcript) Replace(messages []types.Message) {
	t.messages = append([]types.Message(nil), messages...)
	t.active = -1
	for i := len(t.messages) - 1; i >= 0; i-- {
		if _, ok := t.messages[i].(types.SwapMessage); ok {
			t.active = i
			break
		}
	}
}

// Append adds msg to the end
func (t *Transcript) Append(msg types.Message) {
	t.messages = append(t.messages, msg)
	if _, ok := msg.(types.SwapMessage); ok {
		t.active = len(t.messages) - 1
	}
}

// Messages returns a copy of the message list
func (t *Transcript) Messages() []types.Message {
	return append([]types.Message(nil), t.messages...)
}

func (t *Transcript) Len() int { return len(t.messages) }

// ActiveSwap returns the index of the interactive swap prompt
func (t *Transcript) ActiveSwap() (int, bool) {
	return t.active, t.active >= 0
}

// IsActive reports whether message i is the interactive swap prompt
func (t *Transcript) IsActive(i int) bool {
	return t.active >= 0 && i == t.active
}

// LastIsSwap reports whether the newest message is a swap prompt
func (t *Transcript) LastIsSwap() bool {
	return len(t.messages) > 0 && t.active == len(t.messages)-1
}
