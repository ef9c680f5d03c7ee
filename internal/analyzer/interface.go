package analyzer

import (
	"context"

	"github.com/procdoc/sop-flow/internal/sop"
)

// Analyzer proposes key moments from a timestamped transcript.
type Analyzer interface {
	Analyze(ctx context.Context, segments []sop.TranscriptSegment, duration float64) ([]sop.Moment, error)
}
