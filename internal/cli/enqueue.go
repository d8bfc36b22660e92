package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avencia/ingestd/internal/db"
	"github.com/avencia/ingestd/internal/models"
)

var (
	enqueueKind    string
	enqueueLocator string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <source-id>",
	Short: "Queue a source for ingestion",
	Long: `Queue an existing source for ingestion. With --kind and --locator
the source record is created first.

Enqueueing a source that already has a pending or processing job joins
that job instead of creating a duplicate.

Examples:
  ingestd enqueue src-42
  ingestd enqueue src-43 --kind video --locator https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueKind, "kind", "", "create the source with this kind (video|web|document|file)")
	enqueueCmd.Flags().StringVar(&enqueueLocator, "locator", "", "create the source with this locator (URL or file path)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sourceID := args[0]

	if (enqueueKind == "") != (enqueueLocator == "") {
		return errors.New("--kind and --locator must be used together")
	}

	source, err := resolveSource(ctx, sourceID)
	if err != nil {
		return err
	}

	job, err := jobQueue.Enqueue(ctx, sourceID, source.Kind)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	fmt.Printf("Job %s queued for source %s (%s)\n", models.MustRecordIDString(job.ID), sourceID, source.Kind)
	return nil
}

func resolveSource(ctx context.Context, sourceID string) (*models.Source, error) {
	if enqueueKind != "" {
		kind := models.SourceKind(enqueueKind)
		if !models.ValidKind(kind) {
			return nil, fmt.Errorf("unknown kind: %q", enqueueKind)
		}
		source, err := dbClient.CreateSource(ctx, sourceID, kind, enqueueLocator)
		if err != nil {
			return nil, fmt.Errorf("create source: %w", err)
		}
		fmt.Printf("Created source %s (%s)\n", sourceID, kind)
		return source, nil
	}

	source, err := dbClient.GetSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("source not found: %s (use --kind/--locator to create it)", sourceID)
		}
		return nil, fmt.Errorf("load source: %w", err)
	}
	return source, nil
}
