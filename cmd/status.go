package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/pkg/wallet"
)

var (
	watchStatus   bool
	watchInterval int
	confirmTarget uint64
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the confirmations of a transaction",
	Long: `Check how many blocks confirm an approve or swap transaction on the
configured chain.

Examples:
  agent-chat status 0x5c50...e1a9
  agent-chat status 0x5c50...e1a9 --watch
  agent-chat status 0x5c50...e1a9 --watch --interval 10 --confirmations 3`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch until the transaction is confirmed")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().Uint64Var(&confirmTarget, "confirmations", 0, "Confirmations to wait for (default from config)")
}

// txStatus is one observation of a transaction
type txStatus struct {
	Hash          string `json:"hash"`
	Status        string `json:"status"`
	Confirmations uint64 `json:"confirmations"`
	Block         uint64 `json:"block,omitempty"`
	GasUsed       uint64 `json:"gas_used,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	hash, err := parseTxHash(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	if cfg.Wallet.RPCURL == "" {
		printError(fmt.Errorf("wallet.rpc_url is not configured. Set AGENT_CHAT_WALLET_RPC_URL or add it to .agent-chat.yaml"))
		os.Exit(1)
	}
	if confirmTarget == 0 {
		confirmTarget = cfg.MinConfirmations
	}

	ctx := cmd.Context()
	client, err := ethclient.DialContext(ctx, cfg.Wallet.RPCURL)
	if err != nil {
		printError(fmt.Errorf("failed to connect to RPC: %w", err))
		os.Exit(1)
	}
	defer client.Close()

	if watchStatus {
		watchTxStatus(ctx, client, hash, jsonOutput)
	} else {
		checkTxStatus(ctx, client, hash, jsonOutput)
	}
}

// parseTxHash accepts a 32-byte hex hash, with or without the 0x prefix
func parseTxHash(s string) (common.Hash, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %s: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %s: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func checkTxStatus(ctx context.Context, reader wallet.ReceiptReader, hash common.Hash, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction..."
		s.Start()
	}

	status, err := fetchTxStatus(ctx, reader, hash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTxStatus(status)
	}
}

func watchTxStatus(ctx context.Context, reader wallet.ReceiptReader, hash common.Hash, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds until %d confirmations. Press Ctrl+C to stop.\n\n", watchInterval, confirmTarget)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if checkAndDisplayTxStatus(ctx, reader, hash) {
		return
	}

	// Then check periodically
	for range ticker.C {
		if checkAndDisplayTxStatus(ctx, reader, hash) {
			return
		}
	}
}

// checkAndDisplayTxStatus prints one observation and reports whether the
// transaction has reached a final state
func checkAndDisplayTxStatus(ctx context.Context, reader wallet.ReceiptReader, hash common.Hash) bool {
	status, err := fetchTxStatus(ctx, reader, hash)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayTxStatus(status)
	return status.Status == "REVERTED" || status.Status == "CONFIRMED"
}

func fetchTxStatus(ctx context.Context, reader wallet.ReceiptReader, hash common.Hash) (*txStatus, error) {
	n, receipt, err := wallet.CountConfirmations(ctx, reader, hash)
	if err != nil {
		return nil, err
	}

	status := &txStatus{Hash: hash.Hex(), Status: "PENDING", Confirmations: n}
	if receipt == nil {
		return status, nil
	}

	status.Block = receipt.BlockNumber.Uint64()
	status.GasUsed = receipt.GasUsed
	switch {
	case receipt.Status == gethtypes.ReceiptStatusFailed:
		status.Status = "REVERTED"
	case n >= confirmTarget:
		status.Status = "CONFIRMED"
	default:
		status.Status = "CONFIRMING"
	}
	return status, nil
}

func displayTxStatus(status *txStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction:     %s\n", color.CyanString(status.Hash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	fmt.Printf("  Confirmations:   %d / %d\n", status.Confirmations, confirmTarget)
	if status.Block > 0 {
		fmt.Printf("  Block:           %d\n", status.Block)
		fmt.Printf("  Gas Used:        %d\n", status.GasUsed)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "CONFIRMED", "SUCCESS":
		return color.GreenString(status)
	case "PENDING", "CONFIRMING":
		return color.YellowString(status)
	case "REVERTED", "FAIL":
		return color.RedString(status)
	case "CANCEL":
		return color.MagentaString(status)
	default:
		return status
	}
}
