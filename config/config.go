package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agent-chat/pkg/agent"
	"agent-chat/pkg/logger"
	"agent-chat/pkg/wallet"
)

const (
	DefaultRouterAddress = "0x111111125421cA6dc452d289314280a0f8842A65"
	DefaultNativeToken   = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	DefaultChainID       = 1
)

// Config holds the application configuration
type Config struct {
	DefaultAgent string
	Agents       []agent.Descriptor

	Wallet WalletConfig

	RouterAddress string
	NativeToken   string

	HTTPTimeout         time.Duration
	ConfirmationTimeout time.Duration
	MinConfirmations    uint64

	ChatStorage string

	Log     logger.Config
	LogFile string // log destination while the interactive UI owns the terminal
}

// WalletConfig holds the signing wallet settings. An empty private key
// leaves the wallet disconnected.
type WalletConfig struct {
	RPCURL       string
	PrivateKey   string
	ChainID      int64
	GasLimit     *uint64
	GasPrice     *int64
	PollInterval time.Duration
}

// Enabled reports whether a signing key is configured
func (w WalletConfig) Enabled() bool {
	return w.PrivateKey != ""
}

// EVM converts the settings for wallet.DialEVM
func (w WalletConfig) EVM() wallet.EVMConfig {
	return wallet.EVMConfig{
		RPCURL:       w.RPCURL,
		PrivateKey:   w.PrivateKey,
		ChainID:      w.ChainID,
		GasLimit:     w.GasLimit,
		GasPrice:     w.GasPrice,
		PollInterval: w.PollInterval,
	}
}

type agentEntry struct {
	Name                    string `mapstructure:"name"`
	Description             string `mapstructure:"description"`
	Endpoint                string `mapstructure:"endpoint"`
	RequiresConnectedWallet bool   `mapstructure:"requires_connected_wallet"`
}

func defaultAgents() map[string]any {
	return map[string]any{
		"swap-agent": map[string]any{
			"name":                      "Swap Agent",
			"description":               "Swap Agent Description",
			"endpoint":                  "http://127.0.0.1:8080",
			"requires_connected_wallet": true,
		},
		"functional-data-agent": map[string]any{
			"name":                      "Functional Data Agent",
			"description":               "Functional Data Agent Description",
			"endpoint":                  "http://127.0.0.1:8081",
			"requires_connected_wallet": false,
		},
	}
}

// Load reads configuration from environment variables and the config file.
// configFile overrides the .agent-chat.yaml lookup in $HOME and the working
// directory.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".agent-chat")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	// Set default values
	v.SetDefault("default_agent", "swap-agent")
	v.SetDefault("agents", defaultAgents())
	v.SetDefault("router_address", DefaultRouterAddress)
	v.SetDefault("native_token", DefaultNativeToken)
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("confirmation_timeout", "5m")
	v.SetDefault("min_confirmations", 1)
	v.SetDefault("chat_storage", "")
	v.SetDefault("wallet.rpc_url", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.chain_id", DefaultChainID)
	v.SetDefault("wallet.poll_interval", "4s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file", defaultLogFile())

	// Read from environment variables, e.g. AGENT_CHAT_WALLET_PRIVATE_KEY
	v.SetEnvPrefix("AGENT_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DefaultAgent:        v.GetString("default_agent"),
		RouterAddress:       v.GetString("router_address"),
		NativeToken:         v.GetString("native_token"),
		HTTPTimeout:         v.GetDuration("http_timeout"),
		ConfirmationTimeout: v.GetDuration("confirmation_timeout"),
		MinConfirmations:    v.GetUint64("min_confirmations"),
		ChatStorage:         v.GetString("chat_storage"),
		Wallet: WalletConfig{
			RPCURL:       v.GetString("wallet.rpc_url"),
			PrivateKey:   v.GetString("wallet.private_key"),
			ChainID:      v.GetInt64("wallet.chain_id"),
			PollInterval: v.GetDuration("wallet.poll_interval"),
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		LogFile: v.GetString("log.file"),
	}

	if v.IsSet("wallet.gas_limit") {
		limit := v.GetUint64("wallet.gas_limit")
		cfg.Wallet.GasLimit = &limit
	}
	if v.IsSet("wallet.gas_price") {
		price := v.GetInt64("wallet.gas_price")
		cfg.Wallet.GasPrice = &price
	}

	var agents map[string]agentEntry
	if err := v.UnmarshalKey("agents", &agents); err != nil {
		return nil, fmt.Errorf("failed to parse agents: %w", err)
	}
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := agents[id]
		cfg.Agents = append(cfg.Agents, agent.Descriptor{
			ID:                      id,
			Name:                    a.Name,
			Description:             a.Description,
			Endpoint:                a.Endpoint,
			RequiresConnectedWallet: a.RequiresConnectedWallet,
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agent-chat.log"
	}
	return filepath.Join(home, ".agent-chat.log")
}

// Validate checks the values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation_timeout must be positive")
	}
	if c.MinConfirmations == 0 {
		return fmt.Errorf("min_confirmations must be at least 1")
	}
	if c.Wallet.Enabled() && c.Wallet.RPCURL == "" {
		return fmt.Errorf("wallet.rpc_url is required when a private key is configured. Set AGENT_CHAT_WALLET_RPC_URL or add it to .agent-chat.yaml")
	}
	return nil
}

// Registry builds the agent registry from the configured agents
func (c *Config) Registry() (*agent.Registry, error) {
	return agent.NewRegistry(c.DefaultAgent, c.Agents...)
}
