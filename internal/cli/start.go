package cli

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avencia/ingestd/internal/audio"
	"github.com/avencia/ingestd/internal/ingest"
	"github.com/avencia/ingestd/internal/llm"
	"github.com/avencia/ingestd/internal/media"
	"github.com/avencia/ingestd/internal/metrics"
	"github.com/avencia/ingestd/internal/parser"
	"github.com/avencia/ingestd/internal/transcribe"
	"github.com/avencia/ingestd/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the ingestion worker",
	Long: `Start the ingestion worker loop. The worker polls the job queue,
claims pending jobs up to the configured concurrency and processes each
source end to end. Stop it with SIGINT or SIGTERM; in-flight jobs finish
before the process exits.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	collector := metrics.NewCollector()

	downloader := media.NewDownloader(cfg.YTDLPPath, cfg.TempDir, cfg.DownloadTimeout)
	segmenter := media.NewSegmenter(cfg.FFmpegPath)
	transcriber := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel)

	pipeline := audio.NewPipeline(downloader, segmenter, transcriber, embedder, audio.PlanConfig{
		ThresholdBytes:   cfg.ChunkThresholdBytes,
		ThresholdSeconds: cfg.ChunkThresholdSeconds,
		ChunkSeconds:     cfg.ChunkLengthSeconds,
	}, collector)

	chunkCfg := parser.DefaultChunkConfig()
	registry := ingest.NewRegistry(
		ingest.NewVideoProcessor(downloader, pipeline),
		ingest.NewWebProcessor(&http.Client{Timeout: 30 * time.Second}, embedder, chunkCfg),
		ingest.NewDocumentProcessor(parser.DefaultRegistry(), embedder, chunkCfg),
		ingest.NewFileProcessor(embedder, chunkCfg),
	)

	service := ingest.NewService(dbClient, registry)
	w := worker.New(jobQueue, service, worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.PollInterval,
	}, collector)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.Run(ctx)
	return nil
}
