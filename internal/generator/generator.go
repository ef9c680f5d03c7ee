package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/procdoc/sop-flow/internal/gemini"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
)

const generatePrompt = `You are an expert technical writer creating step-by-step process documentation (a Standard Operating Procedure) for accounting and finance teams.

Below is the narrated transcript of a screen recording and the key moments captured as screenshots. Write clear, professional SOP prose. Use imperative language ("Click the...", "Enter...", "Select..."). Focus on what the user must do, not what the system does.

Return ONLY a JSON object, no prose, with exactly this shape:
{
  "title": "<descriptive document title>",
  "purpose": "<one paragraph: why this process exists>",
  "scope": "<who performs it and when>",
  "prerequisites": ["<access, data or tools needed>", ...],
  "steps": [{"number": 1, "text": "<the instruction>", "moment_index": <index into the moment list below, or -1 if none>}, ...],
  "control_points": ["<check the operator must perform>", ...],
  "troubleshooting": ["<common problem and its remedy>", ...],
  "frequency": "<how often the process runs>"
}

Each captured moment must appear as exactly one step, in order; add extra textual-only steps only where the transcript clearly requires them.

Transcript:
---
%s
---

Captured moments (index: [MM:SS] description):
%s`

type implGenerator struct {
	client gemini.Client
	logger logger.Logger
}

// New creates a Generator backed by the shared Gemini client.
func New(client gemini.Client, log logger.Logger) Generator {
	return &implGenerator{client: client, logger: log}
}

func (g *implGenerator) Generate(ctx context.Context, segments []sop.TranscriptSegment, moments []sop.Moment, frames []sop.Frame) (*sop.Document, error) {
	var momentLines strings.Builder
	for i, m := range moments {
		fmt.Fprintf(&momentLines, "%d: [%s] %s", i, sop.FormatTimestamp(m.Timestamp), m.Description)
		if m.NavigationPath != "" {
			fmt.Fprintf(&momentLines, " (via %s)", m.NavigationPath)
		}
		momentLines.WriteString("\n")
	}

	prompt := fmt.Sprintf(generatePrompt, sop.InlineTranscript(segments), momentLines.String())

	g.logger.Info(ctx, "Generating SOP document (%d moments, %d frames)", len(moments), len(frames))

	raw, err := g.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	doc, err := decodeDocument(raw, frames)
	if err != nil {
		return nil, err
	}

	g.logger.Info(ctx, "Generated document with %d sections (%d steps)", len(doc.Sections), len(doc.Steps()))
	return doc, nil
}

type rawDocument struct {
	Title           string    `json:"title"`
	Purpose         string    `json:"purpose"`
	Scope           string    `json:"scope"`
	Prerequisites   []string  `json:"prerequisites"`
	Steps           []rawStep `json:"steps"`
	ControlPoints   []string  `json:"control_points"`
	Troubleshooting []string  `json:"troubleshooting"`
	Frequency       string    `json:"frequency"`
}

type rawStep struct {
	Number      int    `json:"number"`
	Text        string `json:"text"`
	MomentIndex *int   `json:"moment_index"`
}

// decodeDocument parses the model response into ordered sections. Steps are
// renumbered sequentially and moment references are resolved against the
// actually extracted frames; a step whose moment has no frame (failed
// extraction) becomes textual-only instead of dangling.
func decodeDocument(raw string, frames []sop.Frame) (*sop.Document, error) {
	cleaned := sop.StripCodeFences(raw)

	var parsed rawDocument
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &GenerationError{Err: err}
	}
	if strings.TrimSpace(parsed.Title) == "" {
		return nil, &GenerationError{Err: fmt.Errorf("response missing title")}
	}
	if len(parsed.Steps) == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("response missing steps")}
	}

	frameByMoment := make(map[int]int, len(frames))
	for i, f := range frames {
		frameByMoment[f.MomentIndex] = i
	}

	var sections []sop.DocumentSection
	sections = append(sections, sop.DocumentSection{Kind: sop.SectionTitle, Text: strings.TrimSpace(parsed.Title)})
	if p := strings.TrimSpace(parsed.Purpose); p != "" {
		sections = append(sections, sop.DocumentSection{Kind: sop.SectionPurpose, Text: p})
	}
	if s := strings.TrimSpace(parsed.Scope); s != "" {
		sections = append(sections, sop.DocumentSection{Kind: sop.SectionScope, Text: s})
	}
	if len(parsed.Prerequisites) > 0 {
		sections = append(sections, sop.DocumentSection{Kind: sop.SectionPrerequisites, Text: joinLines(parsed.Prerequisites)})
	}

	number := 0
	for _, step := range parsed.Steps {
		text := strings.TrimSpace(step.Text)
		if text == "" {
			continue
		}
		number++
		frameIndex := -1
		if step.MomentIndex != nil {
			if fi, ok := frameByMoment[*step.MomentIndex]; ok {
				frameIndex = fi
			}
		}
		sections = append(sections, sop.DocumentSection{
			Kind:       sop.SectionStep,
			Text:       text,
			StepNumber: number,
			FrameIndex: frameIndex,
		})
	}
	if number == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("response contained only empty steps")}
	}

	for _, cp := range parsed.ControlPoints {
		if cp = strings.TrimSpace(cp); cp != "" {
			sections = append(sections, sop.DocumentSection{Kind: sop.SectionControlPoint, Text: cp})
		}
	}
	for _, ts := range parsed.Troubleshooting {
		if ts = strings.TrimSpace(ts); ts != "" {
			sections = append(sections, sop.DocumentSection{Kind: sop.SectionTroubleshooting, Text: ts})
		}
	}
	if f := strings.TrimSpace(parsed.Frequency); f != "" {
		sections = append(sections, sop.DocumentSection{Kind: sop.SectionFrequency, Text: f})
	}

	return &sop.Document{Sections: sections}, nil
}

// Skeleton is the degraded document used when generation fails: the title
// plus one step per moment with its screenshot, so nothing captured is lost.
func Skeleton(moments []sop.Moment, frames []sop.Frame) *sop.Document {
	frameByMoment := make(map[int]int, len(frames))
	for i, f := range frames {
		frameByMoment[f.MomentIndex] = i
	}

	sections := []sop.DocumentSection{
		{Kind: sop.SectionTitle, Text: "Standard Operating Procedure (draft)"},
		{Kind: sop.SectionPurpose, Text: "Automatic narrative generation failed; the captured steps and screenshots are preserved below for manual editing."},
	}

	for i, m := range moments {
		text := m.Description
		if m.NavigationPath != "" {
			text = fmt.Sprintf("%s (via %s)", text, m.NavigationPath)
		}
		frameIndex := -1
		if fi, ok := frameByMoment[i]; ok {
			frameIndex = fi
		}
		sections = append(sections, sop.DocumentSection{
			Kind:       sop.SectionStep,
			Text:       text,
			StepNumber: i + 1,
			FrameIndex: frameIndex,
		})
	}

	return &sop.Document{Sections: sections}
}

func joinLines(items []string) string {
	var kept []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	return strings.Join(kept, "\n")
}
