package transcribe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/procdoc/sop-flow/internal/sop"
)

type rawSegment struct {
	Start sop.FlexSeconds `json:"start"`
	End   sop.FlexSeconds `json:"end"`
	Text  string          `json:"text"`
}

// decodeSegments parses a JSON array of {start, end, text} objects and
// normalizes it into the segment invariants: non-empty text, start ≤ end,
// non-decreasing start order.
func decodeSegments(raw string) ([]sop.TranscriptSegment, error) {
	cleaned := sop.StripCodeFences(raw)

	var parsed []rawSegment
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("decode transcript segments: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("transcript response contained no segments")
	}

	segments := make([]sop.TranscriptSegment, 0, len(parsed))
	for _, r := range parsed {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		start, end := float64(r.Start), float64(r.End)
		if start < 0 {
			start = 0
		}
		if end < start {
			end = start
		}
		segments = append(segments, sop.TranscriptSegment{Start: start, End: end, Text: text})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("transcript response contained only empty segments")
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	return segments, nil
}
