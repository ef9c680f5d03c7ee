package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/procdoc/sop-flow/internal/gemini"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
)

// dedupeEpsilon merges moments closer than this many seconds. Two clicks
// that close apart are one documentation step.
const dedupeEpsilon = 2.0

const analyzePrompt = `You are analyzing the narrated transcript of a screen recording that demonstrates a business process. Each line is "[MM:SS] narration".

Identify the key moments: points where the user performs a distinct action worth a screenshot in step-by-step documentation (opening a screen, filling a field, clicking a button, confirming a dialog).

Return ONLY a JSON array, no prose. Each element:
{"timestamp": <seconds as number>, "description": "<imperative action, e.g. 'Click the New Invoice button'>", "navigation_path": "<menu path if mentioned, e.g. 'Finance > Invoices', else empty>"}

Rules:
- timestamp is when the action happens, in seconds from the start.
- Order by timestamp.
- Skip greetings, filler and repeated explanations.

Transcript:
---
%s---`

type implAnalyzer struct {
	client gemini.Client
	logger logger.Logger
}

// New creates an Analyzer backed by the shared Gemini client.
func New(client gemini.Client, log logger.Logger) Analyzer {
	return &implAnalyzer{client: client, logger: log}
}

func (a *implAnalyzer) Analyze(ctx context.Context, segments []sop.TranscriptSegment, duration float64) ([]sop.Moment, error) {
	transcript := sop.InlineTranscript(segments)
	if strings.TrimSpace(transcript) == "" {
		return nil, &MomentParseError{Err: fmt.Errorf("transcript is empty")}
	}

	a.logger.Info(ctx, "Analyzing transcript for key moments (%d segments)", len(segments))

	raw, err := a.client.GenerateJSON(ctx, fmt.Sprintf(analyzePrompt, transcript))
	if err != nil {
		return nil, fmt.Errorf("analyze moments: %w", err)
	}

	moments, err := decodeMoments(raw)
	if err != nil {
		return nil, err
	}

	moments = normalize(moments)
	a.logger.Info(ctx, "Proposed %d moments", len(moments))
	return moments, nil
}

type rawMoment struct {
	Timestamp      *sop.FlexSeconds `json:"timestamp"`
	Description    string           `json:"description"`
	NavigationPath string           `json:"navigation_path"`
}

// decodeMoments parses the model response. Elements missing a timestamp or
// description are malformed; the whole response is rejected so the caller
// can degrade with a warning.
func decodeMoments(raw string) ([]sop.Moment, error) {
	cleaned := sop.StripCodeFences(raw)

	var parsed []rawMoment
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &MomentParseError{Err: err}
	}

	moments := make([]sop.Moment, 0, len(parsed))
	for i, r := range parsed {
		if r.Timestamp == nil {
			return nil, &MomentParseError{Err: fmt.Errorf("element %d missing timestamp", i)}
		}
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			return nil, &MomentParseError{Err: fmt.Errorf("element %d missing description", i)}
		}
		moments = append(moments, sop.Moment{
			Timestamp:      float64(*r.Timestamp),
			Description:    desc,
			NavigationPath: strings.TrimSpace(r.NavigationPath),
		})
	}

	return moments, nil
}

// normalize sorts and merges near-duplicates. Out-of-range timestamps are
// kept as-is: frame extraction clamps them to a decodable position and marks
// the resulting frame approximate, so the moment is never silently moved or
// dropped here. Merging keeps the earliest timestamp and joins distinct
// descriptions.
func normalize(moments []sop.Moment) []sop.Moment {
	sort.SliceStable(moments, func(i, j int) bool {
		return moments[i].Timestamp < moments[j].Timestamp
	})

	var out []sop.Moment
	for _, m := range moments {
		if len(out) > 0 && m.Timestamp-out[len(out)-1].Timestamp < dedupeEpsilon {
			prev := &out[len(out)-1]
			if !strings.EqualFold(prev.Description, m.Description) {
				prev.Description = prev.Description + "; " + m.Description
			}
			if prev.NavigationPath == "" {
				prev.NavigationPath = m.NavigationPath
			}
			continue
		}

		out = append(out, m)
	}

	return out
}
