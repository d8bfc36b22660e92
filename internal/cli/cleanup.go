package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [days]",
	Short: "Delete old terminal jobs",
	Long: `Delete done and failed jobs whose last update is older than the
given number of days (default 7). Pending and processing jobs are never
touched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	days := 7
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid days value: %q", args[0])
		}
		days = n
	}

	deleted, err := jobQueue.Cleanup(context.Background(), days)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("Deleted %d terminal jobs older than %d days\n", deleted, days)
	return nil
}
