package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avencia/ingestd/internal/db"
	"github.com/avencia/ingestd/internal/models"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect ingestion jobs",
	Long: `List recent ingestion jobs or inspect a specific job by ID.

Examples:
  ingestd jobs           # List recent jobs
  ingestd jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "maximum number of jobs to list")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := dbClient.ListRecentJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-38s %-10s %-12s %-9s %s\n", "ID", "KIND", "STATUS", "ATTEMPTS", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, job := range jobs {
		created := job.CreatedAt.Format("15:04:05")
		fmt.Printf("%-38s %-10s %-12s %-9d %s\n",
			models.MustRecordIDString(job.ID), job.Kind, job.Status, job.Attempts, created)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := dbClient.GetJob(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("Job: %s\n", models.MustRecordIDString(job.ID))
	fmt.Printf("  Source: %s\n", job.SourceID)
	fmt.Printf("  Kind: %s\n", job.Kind)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Attempts: %d\n", job.Attempts)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.Status == models.JobStatusPending {
		fmt.Printf("  Next run: %s\n", job.NextRunAt.Format(time.RFC3339))
	}
	if job.LeaseExpiresAt != nil {
		fmt.Printf("  Lease expires: %s\n", job.LeaseExpiresAt.Format(time.RFC3339))
	}
	if job.LastError != nil && *job.LastError != "" {
		fmt.Printf("  Last error: %s\n", *job.LastError)
	}

	return nil
}
