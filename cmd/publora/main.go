package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/publora/publora/cmd/publora/commands"
	"github.com/publora/publora/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "publora",
	Short: "Publora - cross-platform post scheduling",
	Long: `Publora - scheduled publishing of media artifacts across platforms.

Publora takes a finished media artifact plus per-platform metadata, assigns
it a publish slot, and later executes the publish across every destination
with bounded retries and crash-safe catch-up.

Available commands:
  schedule - Create, inspect, and run scheduled posts
  db       - Manage the Publora database
  version  - Show version information

Examples:
  publora schedule add video.mp4 --platforms youtube,tiktok --title "Launch"
  publora schedule list --status pending
  publora schedule run --interval 60
  publora db stats`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
