package sop

// TranscriptSegment is a single timed span of narration text.
// Segments are ordered by Start and never overlap backwards.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Moment is a point in the source video that should become a documentation step.
type Moment struct {
	Timestamp      float64 `json:"timestamp"`
	Description    string  `json:"description"`
	NavigationPath string  `json:"navigation_path,omitempty"`
	UserEdited     bool    `json:"user_edited"`
}

// Frame is a still image decoded from the video at a moment's timestamp.
// Approximate is set when the requested timestamp was clamped to the last
// decodable frame instead of failing the batch.
type Frame struct {
	MomentIndex int    `json:"moment_index"`
	Path        string `json:"path"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Approximate bool   `json:"approximate"`
}

// SectionKind tags the variant of a DocumentSection.
type SectionKind string

const (
	SectionTitle           SectionKind = "title"
	SectionPurpose         SectionKind = "purpose"
	SectionScope           SectionKind = "scope"
	SectionPrerequisites   SectionKind = "prerequisites"
	SectionStep            SectionKind = "step"
	SectionControlPoint    SectionKind = "control_point"
	SectionTroubleshooting SectionKind = "troubleshooting"
	SectionFrequency       SectionKind = "frequency"
)

// DocumentSection is one ordered section of the final document.
// StepNumber and FrameIndex are only meaningful for SectionStep;
// FrameIndex is -1 for textual-only steps.
type DocumentSection struct {
	Kind       SectionKind `json:"kind"`
	Text       string      `json:"text"`
	StepNumber int         `json:"step_number,omitempty"`
	FrameIndex int         `json:"frame_index,omitempty"`
}

// Document is the ordered sequence of sections forming the SOP.
type Document struct {
	Sections []DocumentSection `json:"sections"`
}

// Steps returns the step sections in document order.
func (d *Document) Steps() []DocumentSection {
	var steps []DocumentSection
	for _, s := range d.Sections {
		if s.Kind == SectionStep {
			steps = append(steps, s)
		}
	}
	return steps
}

// ValidateFrameRefs checks that every step referencing a frame points into
// the given frame list. Textual-only steps (FrameIndex -1) always pass.
func (d *Document) ValidateFrameRefs(frameCount int) bool {
	for _, s := range d.Sections {
		if s.Kind != SectionStep {
			continue
		}
		if s.FrameIndex < -1 || s.FrameIndex >= frameCount {
			return false
		}
	}
	return true
}
