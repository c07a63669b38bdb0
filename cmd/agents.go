package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:     "list-agents",
	Aliases: []string{"agents", "ls"},
	Short:   "List the configured agents",
	Long: `List the agents agent-chat can talk to, as configured under "agents"
in .agent-chat.yaml.

Examples:
  agent-chat list-agents
  agent-chat agents --json`,
	Args: cobra.NoArgs,
	Run:  runListAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runListAgents(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	registry, err := cfg.Registry()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	agents := registry.List()
	defaultID := registry.Default().ID

	if jsonOutput {
		output := make([]map[string]interface{}, 0, len(agents))
		for _, a := range agents {
			output = append(output, map[string]interface{}{
				"id":                        a.ID,
				"name":                      a.Name,
				"description":               a.Description,
				"endpoint":                  a.Endpoint,
				"requires_connected_wallet": a.RequiresConnectedWallet,
				"default":                   a.ID == defaultID,
			})
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                              AGENTS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n%-24s %-26s %-30s\n", "ID", "NAME", "ENDPOINT")
	fmt.Println(strings.Repeat("-", 80))

	for _, a := range agents {
		id := a.ID
		if a.ID == defaultID {
			id += " *"
		}
		fmt.Printf("%-24s %-26s %-30s\n", color.CyanString("%-22s", id), a.Name, a.Endpoint)
		if a.Description != "" {
			fmt.Printf("%-24s %s\n", "", color.HiBlackString(a.Description))
		}
		if a.RequiresConnectedWallet {
			fmt.Printf("%-24s %s\n", "", color.YellowString("requires a connected wallet"))
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Total: %d agents (* default)\n\n", len(agents))
}
