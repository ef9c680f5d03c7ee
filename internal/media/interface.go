package media

import (
	"context"

	"github.com/procdoc/sop-flow/internal/sop"
)

// ProbeResult describes the uploaded container.
type ProbeResult struct {
	Duration float64
	HasAudio bool
}

// FrameResult pairs one moment with its extraction outcome. Exactly one of
// Frame/Err is meaningful; results keep the moment order of the input.
type FrameResult struct {
	Frame sop.Frame
	Err   error
}

// Media wraps the ffmpeg/ffprobe operations of the pipeline.
type Media interface {
	Probe(ctx context.Context, videoPath string) (ProbeResult, error)
	ExtractAudio(ctx context.Context, videoPath, destDir string) (string, error)
	ExtractFrames(ctx context.Context, videoPath string, duration float64, moments []sop.Moment, destDir string) []FrameResult
}
