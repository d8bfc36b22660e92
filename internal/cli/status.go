package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avencia/ingestd/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [source-id]",
	Short: "Show queue statistics or a source's job status",
	Long: `Show job counts per status, or the latest job for one source.

Examples:
  ingestd status            # queue-wide counts
  ingestd status src-42     # latest job for source src-42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showSourceStatus(ctx, args[0])
	}
	return showQueueStats(ctx)
}

func showQueueStats(ctx context.Context) error {
	stats, err := jobQueue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	if stats.Total() == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-12s %s\n", "STATUS", "COUNT")
	fmt.Println("------------------")
	fmt.Printf("%-12s %d\n", "pending", stats.Pending)
	fmt.Printf("%-12s %d\n", "processing", stats.Processing)
	fmt.Printf("%-12s %d\n", "done", stats.Done)
	fmt.Printf("%-12s %d\n", "failed", stats.Failed)
	fmt.Println("------------------")
	fmt.Printf("%-12s %d\n", "total", stats.Total())
	return nil
}

func showSourceStatus(ctx context.Context, sourceID string) error {
	info, err := jobQueue.JobStatus(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	if info == nil {
		return fmt.Errorf("no job found for source: %s", sourceID)
	}

	fmt.Printf("Source: %s\n", sourceID)
	fmt.Printf("  Job: %s\n", info.JobID)
	fmt.Printf("  Status: %s\n", info.Status)
	fmt.Printf("  Attempts: %d\n", info.Attempts)
	if info.Status == models.JobStatusPending {
		fmt.Printf("  Next run: %s\n", info.NextRunAt.Format(time.RFC3339))
	}
	if info.LastError != nil && *info.LastError != "" {
		fmt.Printf("  Last error: %s\n", *info.LastError)
	}
	return nil
}
