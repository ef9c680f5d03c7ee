package media

import (
	"context"
	"fmt"
	"path/filepath"
)

// ExtractAudio pulls the audio track into a 16kHz mono WAV in destDir.
// That format keeps uploads to the transcription API small and is what
// speech models expect.
func (m *implMedia) ExtractAudio(ctx context.Context, videoPath, destDir string) (string, error) {
	audioPath := filepath.Join(destDir, "audio.wav")

	m.logger.Info(ctx, "Extracting audio: %s", videoPath)

	args := []string{
		"-i", videoPath,
		"-vn",          // No video
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le",
		"-threads", "0",
		"-y",
		audioPath,
	}

	if _, err := m.executor.Execute(ctx, "ffmpeg", args...); err != nil {
		return "", &UnsupportedFormatError{Path: videoPath, Reason: fmt.Sprintf("audio extraction failed: %v", err)}
	}

	m.logger.Info(ctx, "Audio extracted successfully: %s", audioPath)
	return audioPath, nil
}
