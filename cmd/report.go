package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"agent-chat/pkg/types"
	"agent-chat/pkg/wallet"
)

var reportCmd = &cobra.Command{
	Use:   "report <cancel|success|fail>",
	Short: "Tell the agent how a swap ended",
	Long: `Send a swap outcome to the selected agent by hand, for swaps signed
outside agent-chat or when the automatic report did not reach the agent.

Examples:
  agent-chat report success
  agent-chat report cancel --agent swap-agent`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(types.SwapCancelled), string(types.SwapSucceeded), string(types.SwapFailed)},
	Run:       runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) {
	status := types.SwapStatus(args[0])
	switch status {
	case types.SwapCancelled, types.SwapSucceeded, types.SwapFailed:
	default:
		printError(fmt.Errorf("unknown status %q, expected cancel, success or fail", args[0]))
		os.Exit(1)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	ctx := cmd.Context()
	w, closeWallet := openWallet(ctx, cfg)
	defer closeWallet()

	session := newSession(cfg, w)
	if selectedAgent != "" {
		if err := session.SelectAgent(ctx, selectedAgent); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Reporting swap status..."
		s.Start()
	}

	ctrl := session.Controller()
	reply, err := ctrl.Backend().ReportSwapStatus(ctx, w.ChainID(), wallet.AddressString(w), status)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"status": status,
			"reply":  reply.Content,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Printf("\n  Reported:        %s\n", getColoredStatus(string(status)))
	printMessages([]types.Message{reply}, session.Selected().Name)
}
