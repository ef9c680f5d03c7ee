package docbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/common/units"
	"github.com/gomutex/godocx/docx"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
)

const (
	fontName = "Calibri"
	fontSize = 11

	// Embedded screenshots are scaled to this width; height follows the
	// frame's aspect ratio.
	pictureWidthInches = 5.5
)

var sectionHeadings = map[sop.SectionKind]string{
	sop.SectionPurpose:         "Purpose",
	sop.SectionScope:           "Scope",
	sop.SectionPrerequisites:   "Prerequisites",
	sop.SectionControlPoint:    "Control Points",
	sop.SectionTroubleshooting: "Troubleshooting",
	sop.SectionFrequency:       "Frequency",
}

type implBuilder struct {
	logger logger.Logger
}

// New creates a Builder.
func New(log logger.Logger) Builder {
	return &implBuilder{logger: log}
}

// Build renders sections in their given order, preserving step numbering
// and embedding one screenshot per step that references a frame.
func (b *implBuilder) Build(ctx context.Context, document *sop.Document, frames []sop.Frame, outputPath string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return &DocumentWriteError{Path: outputPath, Err: err}
	}

	b.logger.Info(ctx, "Building document with %d sections: %s", len(document.Sections), outputPath)

	var lastHeading string
	for _, section := range document.Sections {
		// Grouped kinds (control points, troubleshooting) share one heading.
		if heading, ok := sectionHeadings[section.Kind]; ok && heading != lastHeading {
			addStyledRun(doc.AddParagraph(""), heading, true, 14)
			lastHeading = heading
		}

		switch section.Kind {
		case sop.SectionTitle:
			addStyledRun(doc.AddParagraph(""), section.Text, true, 18)
			lastHeading = ""
		case sop.SectionStep:
			p := doc.AddParagraph("")
			p.AddText(fmt.Sprintf("Step %d. ", section.StepNumber)).Font(fontName).Size(fontSize).Color("000000").Bold(true)
			p.AddText(section.Text).Font(fontName).Size(fontSize).Color("000000")
			lastHeading = ""

			if section.FrameIndex >= 0 && section.FrameIndex < len(frames) {
				if err := addFrame(doc, frames[section.FrameIndex]); err != nil {
					return &DocumentWriteError{Path: outputPath, Err: err}
				}
			}
		case sop.SectionPrerequisites, sop.SectionControlPoint, sop.SectionTroubleshooting:
			for _, line := range splitLines(section.Text) {
				addStyledRun(doc.AddParagraph(""), "• "+line, false, fontSize)
			}
		default:
			addStyledRun(doc.AddParagraph(""), section.Text, false, fontSize)
		}
	}

	if err := doc.SaveTo(outputPath); err != nil {
		return &DocumentWriteError{Path: outputPath, Err: err}
	}

	b.logger.Info(ctx, "Document written: %s", outputPath)
	return nil
}

func addFrame(doc *docx.RootDoc, frame sop.Frame) error {
	width, height := pictureSize(frame.Width, frame.Height)
	if _, err := doc.AddPicture(frame.Path, width, height); err != nil {
		return fmt.Errorf("embed frame %s: %w", frame.Path, err)
	}
	if frame.Approximate {
		addStyledRun(doc.AddParagraph(""), "(screenshot taken at the nearest available position)", false, 9)
	}
	return nil
}

// pictureSize scales a frame to the document width keeping its aspect
// ratio. Frames with unknown dimensions fall back to 16:9.
func pictureSize(w, h int) (units.Inch, units.Inch) {
	ratio := 9.0 / 16.0
	if w > 0 && h > 0 {
		ratio = float64(h) / float64(w)
	}
	return units.Inch(pictureWidthInches), units.Inch(pictureWidthInches * ratio)
}

func addStyledRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
