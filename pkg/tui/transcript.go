package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agent-chat/pkg/types"
)

func (m Model) renderTranscript() string {
	if len(m.snapshot.Messages) == 0 {
		return dimStyle.Render("  No messages yet. Say hello to " + m.session.Selected().Name + ".")
	}

	agentName := m.session.Selected().Name
	width := m.width - 2
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	for i, msg := range m.snapshot.Messages {
		switch msg := msg.(type) {
		case types.UserMessage:
			b.WriteString(userRoleStyle.Render("You") + "\n")
			b.WriteString(bodyStyle.Width(width).Render(msg.Content) + "\n\n")
		case types.AssistantMessage:
			b.WriteString(assistantRoleStyle.Render(agentName) + "\n")
			b.WriteString(bodyStyle.Width(width).Render(msg.Content) + "\n\n")
		case types.SystemMessage:
			b.WriteString(systemRoleStyle.Width(width).Render(msg.Content) + "\n\n")
		case types.SwapMessage:
			b.WriteString(assistantRoleStyle.Render(agentName) + "\n")
			b.WriteString(m.renderSwap(i, msg.Payload) + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderSwap draws a swap prompt. The active prompt shows the form's edited
// values and its action; older prompts are dimmed.
func (m Model) renderSwap(index int, payload types.SwapPayload) string {
	active := m.form != nil && index == m.formIdx

	amount := payload.SourceAmount()
	slippage := payload.ProposedSlippage()
	if active {
		amount = m.form.Amount()
		slippage = m.form.Slippage()
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + value
	}
	token := func(symbol string) string {
		if !active {
			return symbol
		}
		return tokenStyle.Render(symbol)
	}

	lines := []string{
		row("From", token(payload.Src)),
		row("To", token(payload.Dst)),
		row("Amount", amount),
	}
	if value := payload.EstimatedValue(amount); value > 0 {
		lines = append(lines, row("", fmt.Sprintf("≈ $%.2f", value)))
	}
	if payload.DstAmount != "" {
		lines = append(lines, row("Receive", "~"+payload.DstAmount+" "+payload.Dst))
	}
	lines = append(lines, row("Slippage", fmt.Sprintf("%g%%", slippage)))

	if !active {
		return inactiveSwapBoxStyle.Render(strings.Join(lines, "\n"))
	}

	action := actionStyle.Render(m.form.Action().String())
	if m.form.Loading() {
		action = m.spinner.View() + " " + dimStyle.Render("Loading...")
	}
	lines = append(lines, "", lipgloss.JoinHorizontal(lipgloss.Center, action, "  ", dimStyle.Render("c: cancel")))
	return swapBoxStyle.Render(strings.Join(lines, "\n"))
}
