package cmd

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"agent-chat/pkg/logger"
	"agent-chat/pkg/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the full-screen chat with the selected agent. Swap proposals appear
as prompts you can edit, approve and sign without leaving the chat.

Keys:
  enter      send the message, or submit the focused swap prompt
  tab        switch to the next agent
  a / s      edit the swap amount / slippage
  c          cancel the swap prompt
  r          refresh the token allowance
  ctrl+s     submit the swap prompt once replies follow it
  ctrl+x     cancel the swap prompt once replies follow it
  ctrl+c     quit

Examples:
  agent-chat chat
  agent-chat chat --agent functional-data-agent`,
	Args: cobra.NoArgs,
	Run:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	// The UI owns the terminal, so logs go to a file
	logCfg := cfg.Log
	logCfg.Output = cfg.LogFile
	if err := logger.Init(logCfg); err != nil {
		printError(err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx := cmd.Context()
	w, closeWallet := openWallet(ctx, cfg)
	defer closeWallet()

	session := newSession(cfg, w)
	if selectedAgent != "" {
		if _, err := session.Registry().Get(selectedAgent); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	model := tui.NewModel(ctx, session)
	if selectedAgent != "" {
		model = model.WithAgent(selectedAgent)
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		printError(err)
		os.Exit(1)
	}
	session.Controller().Reset()
}
