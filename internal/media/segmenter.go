package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Segmenter cuts audio files into fixed-length segments with ffmpeg.
type Segmenter struct {
	ffmpegPath string
}

// NewSegmenter creates a segmenter. An empty ffmpegPath falls back to
// "ffmpeg" on PATH.
func NewSegmenter(ffmpegPath string) *Segmenter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Segmenter{ffmpegPath: ffmpegPath}
}

// Extract writes the span [startSeconds, startSeconds+lengthSeconds) of
// the input file to outPath, re-encoding so the cut lands on exact
// boundaries rather than the nearest keyframe.
func (s *Segmenter) Extract(ctx context.Context, inPath, outPath string, startSeconds, lengthSeconds float64) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-ss", formatSeconds(startSeconds),
		"-t", formatSeconds(lengthSeconds),
		"-i", inPath,
		"-vn",
		"-acodec", "aac",
		outPath,
	)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("extract segment at %ss: %w: %s", formatSeconds(startSeconds), err, stderr.String())
	}

	slog.Debug("segment extracted", "path", outPath, "start_s", startSeconds, "length_s", lengthSeconds, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// formatSeconds renders a duration argument without trailing zeros, the
// way ffmpeg expects it.
func formatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
