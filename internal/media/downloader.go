package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Metadata is the subset of yt-dlp's JSON output we care about.
type Metadata struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	DurationSeconds float64 `json:"duration"`
}

// Downloader fetches video metadata and audio tracks via yt-dlp.
type Downloader struct {
	ytdlpPath string
	tempDir   string
	timeout   time.Duration
}

// NewDownloader creates a downloader. An empty ytdlpPath falls back to
// "yt-dlp" on PATH.
func NewDownloader(ytdlpPath, tempDir string, timeout time.Duration) *Downloader {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Downloader{ytdlpPath: ytdlpPath, tempDir: tempDir, timeout: timeout}
}

// FetchMetadata retrieves video metadata without downloading any media.
func (d *Downloader) FetchMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ytdlpPath, "--dump-json", "--no-download", CanonicalURL(videoID))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w: %s", videoID, err, stderr.String())
	}

	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", videoID, err)
	}
	return &meta, nil
}

// DownloadAudio downloads the best audio track for a video into the
// temp dir and returns the file path. The caller is responsible for
// removing the file when done.
func (d *Downloader) DownloadAudio(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	outPath := filepath.Join(d.tempDir, fmt.Sprintf("%s-%d.m4a", videoID, time.Now().UnixNano()))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ytdlpPath,
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--no-playlist",
		"-o", outPath,
		CanonicalURL(videoID),
	)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("download audio for %s: timed out after %s", videoID, d.timeout)
		}
		return "", fmt.Errorf("download audio for %s: %w: %s", videoID, err, stderr.String())
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("stat downloaded audio: %w", err)
	}

	slog.Debug("audio downloaded", "video_id", videoID, "path", outPath, "size_bytes", info.Size(), "duration_ms", time.Since(start).Milliseconds())
	return outPath, nil
}
