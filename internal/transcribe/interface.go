package transcribe

import (
	"context"

	"github.com/procdoc/sop-flow/internal/sop"
)

// Transcriber turns an audio file into ordered transcript segments.
// language is an optional hint ("" lets the provider detect it).
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]sop.TranscriptSegment, error)
}
