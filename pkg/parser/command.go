package parser

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// TokenDecimals is the fixed scale used for amounts sent to the agent
const TokenDecimals = 18

// CommandKind identifies a slash command typed into the chat input
type CommandKind string

const (
	CommandAgent   CommandKind = "agent"
	CommandCancel  CommandKind = "cancel"
	CommandRefresh CommandKind = "refresh"
	CommandHelp    CommandKind = "help"
	CommandQuit    CommandKind = "quit"
)

// Command is a parsed slash command
type Command struct {
	Kind CommandKind
	Arg  string
}

var (
	commandPattern = regexp.MustCompile(`^/([a-z]+)(?:\s+(\S+))?\s*$`)
	amountPattern  = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)
)

// ParseChatCommand parses chat input starting with a slash
// Examples:
//   - "/agent swap-agent"
//   - "/cancel"
//   - "/quit"
//
// ok is false when the input is an ordinary message.
func ParseChatCommand(input string) (cmd *Command, ok bool, err error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil, false, nil
	}

	matches := commandPattern.FindStringSubmatch(strings.ToLower(input))
	if matches == nil {
		return nil, true, fmt.Errorf("invalid command %q. Type /help for the list of commands", input)
	}

	kind := CommandKind(matches[1])
	switch kind {
	case CommandAgent:
		if matches[2] == "" {
			return nil, true, fmt.Errorf("usage: /agent <agent-id>")
		}
	case CommandCancel, CommandRefresh, CommandHelp, CommandQuit:
		if matches[2] != "" {
			return nil, true, fmt.Errorf("/%s takes no arguments", kind)
		}
	case "exit":
		kind = CommandQuit
	default:
		return nil, true, fmt.Errorf("unknown command /%s", kind)
	}

	return &Command{Kind: kind, Arg: matches[2]}, true, nil
}

// ScaleAmount converts a decimal token amount into its integer smallest-unit
// form. Digits beyond the given decimals are truncated.
func ScaleAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	matches := amountPattern.FindStringSubmatch(amount)
	if matches == nil || (matches[1] == "" && matches[2] == "") {
		return nil, fmt.Errorf("invalid amount format: %q", amount)
	}

	whole, frac := matches[1], matches[2]
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return new(big.Int), nil
	}

	result, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %q", amount)
	}
	return result, nil
}

// ScaleTokenAmount scales amount by 10^TokenDecimals
func ScaleTokenAmount(amount string) (*big.Int, error) {
	return ScaleAmount(amount, TokenDecimals)
}

// ValidateAmount checks that amount is a positive decimal
func ValidateAmount(amount string) error {
	scaled, err := ScaleTokenAmount(amount)
	if err != nil {
		return err
	}
	if scaled.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	return nil
}
