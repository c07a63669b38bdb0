package types

import (
	"encoding/json"
	"fmt"
)

// Role is the wire discriminant of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSwap      Role = "swap"
	RoleSystem    Role = "system"
)

// Message is one entry of a chat transcript. The concrete type is one of
// UserMessage, AssistantMessage, SwapMessage or SystemMessage.
type Message interface {
	Role() Role
	isMessage()
}

// UserMessage is text typed by the user
type UserMessage struct {
	Content string
}

// AssistantMessage is a text reply from an agent
type AssistantMessage struct {
	Content string
}

// SystemMessage is a text notice from the backend
type SystemMessage struct {
	Content string
}

// SwapMessage carries a swap proposal instead of text
type SwapMessage struct {
	Payload SwapPayload
}

func (UserMessage) Role() Role      { return RoleUser }
func (AssistantMessage) Role() Role { return RoleAssistant }
func (SystemMessage) Role() Role    { return RoleSystem }
func (SwapMessage) Role() Role      { return RoleSwap }

func (UserMessage) isMessage()      {}
func (AssistantMessage) isMessage() {}
func (SystemMessage) isMessage()    {}
func (SwapMessage) isMessage()      {}

// wireMessage is the {role, content} shape used by the agent API
type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// DecodeMessage converts a wire message into its concrete variant
func DecodeMessage(data []byte) (Message, error) {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	switch wm.Role {
	case RoleUser, RoleAssistant, RoleSystem:
		var text string
		if len(wm.Content) > 0 && string(wm.Content) != "null" {
			if err := json.Unmarshal(wm.Content, &text); err != nil {
				return nil, fmt.Errorf("content of %s message is not text: %w", wm.Role, err)
			}
		}
		return NewTextMessage(wm.Role, text)
	case RoleSwap:
		var payload SwapPayload
		if err := json.Unmarshal(wm.Content, &payload); err != nil {
			return nil, fmt.Errorf("invalid swap payload: %w", err)
		}
		return SwapMessage{Payload: payload}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", wm.Role)
	}
}

// DecodeMessages decodes a list of wire messages
func DecodeMessages(raw []json.RawMessage) ([]Message, error) {
	messages := make([]Message, 0, len(raw))
	for i, item := range raw {
		msg, err := DecodeMessage(item)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// EncodeMessage converts a message into its {role, content} wire form
func EncodeMessage(msg Message) ([]byte, error) {
	var content any
	switch m := msg.(type) {
	case UserMessage:
		content = m.Content
	case AssistantMessage:
		content = m.Content
	case SystemMessage:
		content = m.Content
	case SwapMessage:
		content = m.Payload
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: msg.Role(), Content: raw})
}

// NewTextMessage builds the text variant for role
func NewTextMessage(role Role, content string) (Message, error) {
	switch role {
	case RoleUser:
		return UserMessage{Content: content}, nil
	case RoleAssistant:
		return AssistantMessage{Content: content}, nil
	case RoleSystem:
		return SystemMessage{Content: content}, nil
	default:
		return nil, fmt.Errorf("role %q does not carry text", role)
	}
}

// Text returns a printable form of the message
func Text(msg Message) string {
	switch m := msg.(type) {
	case UserMessage:
		return m.Content
	case AssistantMessage:
		return m.Content
	case SystemMessage:
		return m.Content
	case SwapMessage:
		return fmt.Sprintf("swap %s %s to %s", m.Payload.SourceAmount(), m.Payload.Src, m.Payload.Dst)
	default:
		return ""
	}
}
