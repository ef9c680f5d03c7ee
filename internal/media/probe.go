package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// supportedExtensions is the upload whitelist.
var supportedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
}

// SupportedExtension reports whether the file name carries an accepted
// video extension.
func SupportedExtension(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Probe validates the container and returns its duration and audio presence.
// A container without an audio track cannot be transcribed, so it is
// rejected up front.
func (m *implMedia) Probe(ctx context.Context, videoPath string) (ProbeResult, error) {
	if !SupportedExtension(videoPath) {
		return ProbeResult{}, &UnsupportedFormatError{
			Path:   videoPath,
			Reason: fmt.Sprintf("extension %q is not supported", filepath.Ext(videoPath)),
		}
	}

	out, err := m.executor.Execute(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return ProbeResult{}, &UnsupportedFormatError{Path: videoPath, Reason: fmt.Sprintf("ffprobe failed: %v", err)}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || duration <= 0 {
		return ProbeResult{}, &UnsupportedFormatError{Path: videoPath, Reason: "container has no readable duration"}
	}

	streams, err := m.executor.Execute(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil {
		return ProbeResult{}, &UnsupportedFormatError{Path: videoPath, Reason: fmt.Sprintf("ffprobe streams failed: %v", err)}
	}

	hasAudio := strings.Contains(streams, "audio")
	if !hasAudio {
		return ProbeResult{}, &UnsupportedFormatError{Path: videoPath, Reason: "container has no audio track"}
	}

	m.logger.Debug(ctx, "Probed %s: duration=%.2fs audio=%v", videoPath, duration, hasAudio)
	return ProbeResult{Duration: duration, HasAudio: hasAudio}, nil
}
