package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/pkg/chat"
	"agent-chat/pkg/swapform"
	"agent-chat/pkg/types"
)

var (
	swapAmount   string
	swapSlippage string
	noConfirm    bool
	cancelSwap   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Approve and sign the pending swap proposal",
	Long: `Execute the swap the selected agent proposed last. Tokens that need an
allowance are approved first, then the swap is signed with the configured
wallet. The agent is told whether the swap succeeded.

Examples:
  # Review and sign the proposal
  agent-chat swap

  # Change the amount and slippage before signing
  agent-chat swap --amount 0.25 --slippage 0.5

  # Decline the proposal
  agent-chat swap --cancel

  # Skip the confirmation prompt
  agent-chat swap --yes`,
	Args: cobra.NoArgs,
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&swapAmount, "amount", "", "Override the proposed source amount")
	swapCmd.Flags().StringVar(&swapSlippage, "slippage", "", "Override the proposed slippage in percent")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&cancelSwap, "cancel", false, "Decline the proposal instead of executing it")
}

func runSwap(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	ctx := cmd.Context()
	w, closeWallet := openWallet(ctx, cfg)
	defer closeWallet()

	session := openSession(ctx, cfg, w)
	ctrl := session.Controller()

	snapshot := ctrl.Snapshot()
	if snapshot.ActiveSwap < 0 {
		printError(fmt.Errorf("%s has no pending swap proposal", session.Selected().Name))
		os.Exit(1)
	}
	payload := snapshot.Messages[snapshot.ActiveSwap].(types.SwapMessage).Payload
	form := session.NewForm(payload, true)

	if cancelSwap {
		if err := form.Cancel(ctx); err != nil {
			printError(err)
			os.Exit(1)
		}
		printOutcome(ctrl, types.SwapCancelled, session.Selected().Name, jsonOutput)
		return
	}

	if !w.Connected() {
		printError(fmt.Errorf("a connected wallet is required to swap. Set wallet.private_key and wallet.rpc_url in .agent-chat.yaml"))
		os.Exit(1)
	}

	if swapAmount != "" {
		if err := form.SetAmount(swapAmount); err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	if swapSlippage != "" {
		if err := form.SetSlippage(swapSlippage); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if _, err := form.RefreshAllowance(ctx); err != nil {
		printError(fmt.Errorf("failed to read allowance: %w", err))
		os.Exit(1)
	}

	if !jsonOutput {
		displaySwapPayload(payload, form.Amount(), form.Slippage())
		if form.Action() == swapform.ActionApprove {
			color.Yellow("  %s needs an allowance for the router first.\n", payload.Src)
		}
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap not executed. Use --cancel to decline it.")
			os.Exit(0)
		}
	}

	// an approval is followed by the swap itself
	for {
		action, err := form.Submit(ctx)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if verbose {
			fmt.Printf("\n%s transaction sent: %s\n", action, ctrl.TxHash().Hex())
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = fmt.Sprintf(" Waiting for %s confirmation...", strings.ToLower(action.String()))
			s.Start()
		}
		err = ctrl.WaitIdle(ctx)
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}

		status := ctrl.LastStatus()
		if status != types.SwapSucceeded || action == swapform.ActionSwap {
			printOutcome(ctrl, status, session.Selected().Name, jsonOutput)
			if status != types.SwapSucceeded {
				os.Exit(1)
			}
			return
		}

		if !jsonOutput {
			color.Green("\n✓ Approval confirmed")
		}
		if _, err := form.RefreshAllowance(ctx); err != nil {
			printError(fmt.Errorf("failed to read allowance: %w", err))
			os.Exit(1)
		}
		if form.Action() != swapform.ActionSwap {
			printError(fmt.Errorf("allowance for %s is still below %s after approval", payload.Src, form.Amount()))
			os.Exit(1)
		}
	}
}

// printOutcome shows the status and the agent's latest reply
func printOutcome(ctrl *chat.Controller, status types.SwapStatus, agentName string, jsonOutput bool) {
	messages := ctrl.Messages()
	var reply types.Message
	if len(messages) > 0 {
		reply = messages[len(messages)-1]
	}

	if jsonOutput {
		output := map[string]interface{}{
			"status": status,
		}
		if reply != nil {
			output["reply"] = types.Text(reply)
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	switch status {
	case types.SwapSucceeded:
		printSuccess("✓ Swap confirmed")
	case types.SwapCancelled:
		color.Yellow("\nSwap declined.\n")
	default:
		color.Red("\n✗ Swap failed\n")
	}
	if reply != nil {
		printMessages([]types.Message{reply}, agentName)
	}
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
