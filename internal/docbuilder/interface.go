package docbuilder

import (
	"context"

	"github.com/procdoc/sop-flow/internal/sop"
)

// Builder renders a Document plus its frames into a .docx file.
// Identical inputs produce identical output apart from archive timestamps.
type Builder interface {
	Build(ctx context.Context, doc *sop.Document, frames []sop.Frame, outputPath string) error
}
