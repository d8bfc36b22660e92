// Package media handles locator parsing, audio download and segmentation
// for video sources. Download and segmentation shell out to yt-dlp and
// ffmpeg; callers own binary paths and timeouts via config.
package media

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidLocator marks a locator that matches none of the known URL
// shapes. Retrying will never make it parse.
var ErrInvalidLocator = errors.New("invalid video locator")

// videoIDPattern recognizes the common watch, embed and short-link URL
// shapes and captures the 11-character video id.
var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})`)

// ParseVideoID extracts the canonical video id from a locator URL.
func ParseVideoID(locator string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(locator)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return m[1], nil
}

// CanonicalURL returns the normalized watch URL for a video id.
func CanonicalURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}
