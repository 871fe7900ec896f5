package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/publora/publora/config"
	"github.com/publora/publora/errors"
	"github.com/publora/publora/post"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Publora database",
	Long: `db — Manage Publora database operations

Examples:
  publora db stats    # Show database statistics`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	dbPath, err := config.GetDatabasePath()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	counts, err := post.NewStore(database).CountByStatus()
	if err != nil {
		return err
	}

	total := 0
	for _, count := range counts {
		total += count
	}

	fmt.Println("Database Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Database Path: %s\n", dbPath)
	fmt.Printf("Total Posts:   %d\n", total)
	fmt.Println()
	for _, status := range []post.Status{
		post.StatusPending, post.StatusProcessing, post.StatusCompleted,
		post.StatusFailed, post.StatusCancelled,
	} {
		fmt.Printf("  %-12s %d\n", status, counts[status])
	}

	return nil
}
