package sop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes a surrounding markdown code block, which models
// add even when asked for bare JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FlexSeconds decodes a JSON number of seconds or a "MM:SS"-style string;
// models emit both shapes for the same field.
type FlexSeconds float64

func (f *FlexSeconds) UnmarshalJSON(b []byte) error {
	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		*f = FlexSeconds(num)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp is neither number nor string: %s", b)
	}
	v, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*f = FlexSeconds(v)
	return nil
}
