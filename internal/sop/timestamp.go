package sop

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimestamp renders seconds as MM:SS (or HH:MM:SS past one hour).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// ParseTimestamp accepts the timestamp shapes models actually emit:
// plain seconds ("95", "95.5"), MM:SS ("1:35") and HH:MM:SS ("00:01:35").
func ParseTimestamp(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if !strings.Contains(raw, ":") {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		return v, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("parse timestamp %q: too many fields", raw)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		total = total*60 + v
	}
	return total, nil
}

// InlineTranscript renders segments as "[MM:SS] text" lines, the shape the
// moment-analysis prompt expects.
func InlineTranscript(segments []TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(FormatTimestamp(seg.Start))
		b.WriteString("] ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// PlainTranscript concatenates segment text without timestamps.
func PlainTranscript(segments []TranscriptSegment) string {
	var lines []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, " ")
}
