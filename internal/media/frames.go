package media

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/procdoc/sop-flow/internal/sop"
)

// lastFrameMargin is how far before the container end a clamped timestamp
// lands, so the seek still hits a decodable frame.
const lastFrameMargin = 0.1

// clampTimestamp forces ts to a decodable position. Seeks at or past the
// container end decode nothing, so anything inside the final margin backs
// off to duration - lastFrameMargin. The second return reports whether
// clamping happened, which marks the resulting frame approximate.
func clampTimestamp(ts, duration float64) (float64, bool) {
	if ts < 0 {
		return 0, true
	}
	limit := duration - lastFrameMargin
	if limit < 0 {
		limit = 0
	}
	if ts > limit {
		return limit, true
	}
	return ts, false
}

// ExtractFrames decodes one still per moment, in moment order. A failed
// decode fills that moment's slot with a FrameExtractionError and the rest
// of the batch continues. Extraction fans out over a bounded semaphore
// because each seek is independent and read-only.
func (m *implMedia) ExtractFrames(ctx context.Context, videoPath string, duration float64, moments []sop.Moment, destDir string) []FrameResult {
	results := make([]FrameResult, len(moments))
	if len(moments) == 0 {
		return results
	}

	m.logger.Info(ctx, "Extracting %d frames from %s (max concurrent: %d)", len(moments), videoPath, m.maxConcurrent)

	sem := newSemaphore(m.maxConcurrent)
	var wg sync.WaitGroup

	for i, moment := range moments {
		if err := sem.acquire(ctx); err != nil {
			results[i] = FrameResult{Err: &FrameExtractionError{MomentIndex: i, Timestamp: moment.Timestamp, Err: err}}
			continue
		}

		wg.Add(1)
		go func(idx int, mom sop.Moment) {
			defer wg.Done()
			defer sem.release()

			results[idx] = m.extractOne(ctx, videoPath, duration, idx, mom, destDir)
		}(i, moment)
	}

	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			m.logger.Warn(ctx, "Frame extraction partial failure: %v", r.Err)
		}
	}

	return results
}

func (m *implMedia) extractOne(ctx context.Context, videoPath string, duration float64, idx int, moment sop.Moment, destDir string) FrameResult {
	ts, approximate := clampTimestamp(moment.Timestamp, duration)
	framePath := filepath.Join(destDir, fmt.Sprintf("frame_%03d.jpg", idx))

	// -ss after -i seeks by decoding, which is frame-accurate rather than
	// keyframe-approximate.
	args := []string{
		"-y",
		"-i", videoPath,
		"-ss", fmt.Sprintf("%.3f", ts),
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	}

	if _, err := m.executor.Execute(ctx, "ffmpeg", args...); err != nil {
		return FrameResult{Err: &FrameExtractionError{MomentIndex: idx, Timestamp: moment.Timestamp, Err: err}}
	}

	width, height, err := imageDimensions(framePath)
	if err != nil {
		return FrameResult{Err: &FrameExtractionError{MomentIndex: idx, Timestamp: moment.Timestamp, Err: err}}
	}

	if approximate {
		m.logger.Warn(ctx, "Moment %d timestamp %.2fs out of range, clamped to %.2fs", idx, moment.Timestamp, ts)
	}

	return FrameResult{Frame: sop.Frame{
		MomentIndex: idx,
		Path:        framePath,
		Width:       width,
		Height:      height,
		Approximate: approximate,
	}}
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode frame: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
