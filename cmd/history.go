package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/pkg/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"log"},
	Short:   "Show the conversation with an agent",
	Long: `Print the transcript the selected agent holds for this client,
including swap proposals.

Examples:
  agent-chat history
  agent-chat history --agent functional-data-agent --last 5
  agent-chat history --json`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "last", "n", 0, "Only show the last n messages")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	ctx := cmd.Context()
	w, closeWallet := openWallet(ctx, cfg)
	defer closeWallet()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Loading history..."
		s.Start()
	}

	session := openSession(ctx, cfg, w)
	if !jsonOutput {
		s.Stop()
	}

	messages := session.Controller().Messages()
	if historyLimit > 0 && len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}

	if jsonOutput {
		printMessagesJSON(messages)
		return
	}

	if len(messages) == 0 {
		fmt.Printf("\nNo messages with %s yet.\n\n", session.Selected().Name)
		return
	}
	printMessages(messages, session.Selected().Name)
}

func printMessagesJSON(messages []types.Message) {
	raw := make([]json.RawMessage, 0, len(messages))
	for _, msg := range messages {
		data, err := types.EncodeMessage(msg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		raw = append(raw, data)
	}
	jsonData, _ := json.MarshalIndent(raw, "", "  ")
	fmt.Println(string(jsonData))
}

func printMessages(messages []types.Message, agentName string) {
	fmt.Println()
	for _, msg := range messages {
		switch msg := msg.(type) {
		case types.UserMessage:
			fmt.Printf("%s %s\n\n", color.GreenString("You:"), msg.Content)
		case types.AssistantMessage:
			fmt.Printf("%s %s\n\n", color.YellowString(agentName+":"), msg.Content)
		case types.SystemMessage:
			fmt.Printf("%s\n\n", color.HiBlackString(msg.Content))
		case types.SwapMessage:
			fmt.Printf("%s swap proposal\n", color.YellowString(agentName+":"))
			displaySwapPayload(msg.Payload, msg.Payload.SourceAmount(), msg.Payload.ProposedSlippage())
		}
	}
}

func displaySwapPayload(payload types.SwapPayload, amount string, slippage float64) {
	fmt.Println(strings.Repeat("=", 60))
	color.Green("                     SWAP PROPOSAL")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:        %s %s\n", amount, color.YellowString(payload.Src))
	if payload.DstAmount != "" {
		fmt.Printf("  To:          ~%s %s\n", payload.DstAmount, color.YellowString(payload.Dst))
	} else {
		fmt.Printf("  To:          %s\n", color.YellowString(payload.Dst))
	}
	if value := payload.EstimatedValue(amount); value > 0 {
		fmt.Printf("  Value:       ~$%.2f\n", value)
	}
	fmt.Printf("  Slippage:    %g%%\n", slippage)
	fmt.Printf("  Token:       %s\n", color.HiBlackString(payload.SrcAddress))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
