package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-chat/config"
	"agent-chat/pkg/chatlog"
)

var chatsAgentFilter string

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage the local chat index",
	Long: `agent-chat remembers which agents you talked to and when. The
conversations themselves stay with the agents; the index only keeps a
title and the message count.`,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent chats",
	Long: `Display recent chats, most recently updated first.

Examples:
  agent-chat chats list
  agent-chat chats list --filter swap-agent
  agent-chat chats list --json`,
	Args: cobra.NoArgs,
	Run:  runChatsList,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a chat from the index",
	Long: `Remove a chat from the local index. The agent keeps its own history.

Examples:
  agent-chat chats delete 4f7c1f2e-52a1-4c3b-9a59-0c3a6f1d0b11`,
	Args: cobra.ExactArgs(1),
	Run:  runChatsDelete,
}

func init() {
	rootCmd.AddCommand(chatsCmd)
	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)

	chatsListCmd.Flags().StringVar(&chatsAgentFilter, "filter", "", "Only show chats with this agent")
}

func openChatStorage(cfg *config.Config) *chatlog.Storage {
	storage, err := chatlog.NewStorage(cfg.ChatStorage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return storage
}

func runChatsList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)
	storage := openChatStorage(cfg)

	entries := storage.List()
	if chatsAgentFilter != "" {
		var filtered []chatlog.Entry
		for _, e := range entries {
			if e.Agent == chatsAgentFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if jsonOutput {
		if entries == nil {
			entries = []chatlog.Entry{}
		}
		output, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(output))
		return
	}

	if len(entries) == 0 {
		color.Yellow("No chats found.\n")
		fmt.Println("\nStart one with:")
		color.Cyan("  agent-chat chat\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 110))
	color.Green("                                              CHATS")
	fmt.Println(strings.Repeat("=", 110))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tAGENT\tTITLE\tMESSAGES\tLAST UPDATED")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Agent, e.Title, e.MessageCount, e.LastUpdated.Local().Format("2006-01-02 15:04"))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 110))
	fmt.Printf("Index: %s\n\n", color.HiBlackString(storage.GetFilePath()))
}

func runChatsDelete(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	storage := openChatStorage(cfg)

	entry, err := storage.Get(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := storage.Delete(entry.ID); err != nil {
		printError(err)
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("✓ Removed chat '%s' with %s", entry.Title, entry.Agent))
}
