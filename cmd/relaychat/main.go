package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	relayURL string
	userID   string
	files    []string
)

var rootCmd = &cobra.Command{
	Use:   "relaychat",
	Short: "Chat with the assistant relay from the terminal",
	Long: `relaychat sends messages to a running relay service and renders the
streamed reply as it arrives. Attach files with --file to have the
assistant analyze them.`,
}

var sendCmd = &cobra.Command{
	Use:   "send [message...]",
	Short: "Send one message and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	Run:   runSendCommand,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "url", "http://localhost:12310",
		"Base URL of the relay service")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "default",
		"User identifier; messages from the same user share a conversation thread")
	sendCmd.Flags().StringArrayVar(&files, "file", nil,
		"File to attach (repeatable)")
	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
