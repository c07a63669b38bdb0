package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	agentTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Padding(0, 1)

	selectedAgentStyle = lipgloss.NewStyle().
				Bold(true).
				Background(lipgloss.Color("25")).
				Foreground(lipgloss.Color("255")).
				Padding(0, 1)

	userRoleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)

	assistantRoleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("255")).
				Background(lipgloss.Color("208")).
				Padding(0, 1)

	systemRoleStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("242"))

	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(1)

	swapBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2).
			Width(52)

	inactiveSwapBoxStyle = swapBoxStyle.
				BorderForeground(lipgloss.Color("238")).
				Foreground(lipgloss.Color("242"))

	labelStyle = lipgloss.NewStyle().
			Width(11).
			Foreground(lipgloss.Color("252"))

	tokenStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	actionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)
