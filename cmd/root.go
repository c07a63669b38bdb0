package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/config"
	"agent-chat/pkg/chat"
	"agent-chat/pkg/chatlog"
	"agent-chat/pkg/client"
	"agent-chat/pkg/logger"
	"agent-chat/pkg/wallet"
)

var (
	cfgFile       string
	selectedAgent string
)

var rootCmd = &cobra.Command{
	Use:   "agent-chat",
	Short: "Chat with AI agents and confirm the swaps they propose",
	Long: `agent-chat is a terminal client for HTTP chat agents. The swap agent can
propose token swaps; agent-chat shows them as prompts that you approve and
sign with your configured EVM wallet.

Examples:
  agent-chat chat
  agent-chat send "swap 0.1 ETH to USDC"
  agent-chat swap --yes
  agent-chat history --agent functional-data-agent
  agent-chat status 0x5c50...e1a9 --watch`,
	Version: "0.1.0",
}

// Execute runs the root command. Commands see a context that ends on
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&selectedAgent, "agent", "a", "", "Agent to talk to (default from config)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.agent-chat.yaml)")
}

func printError(err error) {
	color.Red("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	color.Green("\n%s\n\n", message)
}

// loadConfig reads the configuration and sets up logging for a command
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if err := logger.Init(cfg.Log); err != nil {
		printError(err)
		os.Exit(1)
	}
	return cfg
}

// openWallet connects the configured signing wallet. Without a private key
// the wallet stays disconnected.
func openWallet(ctx context.Context, cfg *config.Config) (wallet.Wallet, func()) {
	if !cfg.Wallet.Enabled() {
		return wallet.NewDisconnected(cfg.Wallet.ChainID), func() {}
	}

	w, err := wallet.DialEVM(ctx, cfg.Wallet.EVM())
	if err != nil {
		printError(fmt.Errorf("failed to connect wallet: %w", err))
		os.Exit(1)
	}
	return w, w.Close
}

// newSession wires the agent registry, backend client, wallet and chat index
func newSession(cfg *config.Config, w wallet.Wallet) *chat.Session {
	registry, err := cfg.Registry()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	sessionCfg := chat.SessionConfig{
		Registry: registry,
		Wallet:   w,
		NewBackend: func(endpoint string) (chat.Backend, error) {
			return client.NewBackendClient(endpoint, httpClient)
		},
		Controller: chat.ControllerConfig{
			MinConfirmations:    cfg.MinConfirmations,
			ConfirmationTimeout: cfg.ConfirmationTimeout,
			ReportTimeout:       cfg.HTTPTimeout,
		},
		Router: cfg.RouterAddress,
		Native: cfg.NativeToken,
	}

	storage, err := chatlog.NewStorage(cfg.ChatStorage)
	if err != nil {
		logger.L().Warn("chat index unavailable", "error", err)
	} else {
		sessionCfg.Recorder = storage
	}

	session, err := chat.NewSession(sessionCfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return session
}

// openSession builds a session bound to the --agent flag (or the default
// agent) and loads its history
func openSession(ctx context.Context, cfg *config.Config, w wallet.Wallet) *chat.Session {
	session := newSession(cfg, w)

	var err error
	if selectedAgent != "" {
		err = session.SelectAgent(ctx, selectedAgent)
	} else {
		err = session.Load(ctx)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return session
}
