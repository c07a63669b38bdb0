package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/pkg/chat"
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message to an agent",
	Long: `Send a message to the selected agent and print its reply.

When the agent answers with a swap proposal, run "agent-chat swap" to
approve and sign it.

Examples:
  agent-chat send "swap 0.1 ETH to USDC"
  agent-chat send --agent functional-data-agent "price of ETH"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) {
	text := strings.Join(args, " ")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	ctx := cmd.Context()
	w, closeWallet := openWallet(ctx, cfg)
	defer closeWallet()

	session := openSession(ctx, cfg, w)
	before := len(session.Controller().Messages())

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = fmt.Sprintf(" Waiting for %s...", session.Selected().Name)
		s.Start()
	}

	err := session.SubmitMessage(ctx, text)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		switch {
		case errors.Is(err, chat.ErrWalletRequired):
			printError(fmt.Errorf("%w. Set wallet.private_key and wallet.rpc_url in .agent-chat.yaml", err))
		case errors.Is(err, chat.ErrInputDisabled):
			printError(fmt.Errorf("%w. Run \"agent-chat swap\" or \"agent-chat swap --cancel\" first", err))
		default:
			printError(err)
		}
		os.Exit(1)
	}

	messages := session.Controller().Messages()
	// the reply replaces the transcript, so show everything past the
	// user's own message
	replies := messages
	if before+1 <= len(messages) {
		replies = messages[before+1:]
	}

	if jsonOutput {
		printMessagesJSON(replies)
		return
	}
	printMessages(replies, session.Selected().Name)

	if session.Controller().Snapshot().ActiveSwap >= 0 {
		fmt.Println("Review and sign the proposal with:")
		color.Cyan("  agent-chat swap\n")
	}
}
