package generator

import (
	"context"

	"github.com/procdoc/sop-flow/internal/sop"
)

// Generator turns the transcript and the confirmed (moment, frame) pairs
// into the typed SOP document.
type Generator interface {
	Generate(ctx context.Context, segments []sop.TranscriptSegment, moments []sop.Moment, frames []sop.Frame) (*sop.Document, error)
}
