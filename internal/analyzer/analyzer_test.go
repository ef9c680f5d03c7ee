package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
)

type fakeGeminiClient struct {
	response string
	err      error
}

func (f *fakeGeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeGeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeGeminiClient) GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	return f.response, f.err
}

var testSegments = []sop.TranscriptSegment{
	{Start: 0, End: 5, Text: "First I open the vendor portal"},
	{Start: 40, End: 45, Text: "Then I enter the invoice amount"},
	{Start: 88, End: 95, Text: "Finally I submit the form"},
}

func TestAnalyzeProposesMoments(t *testing.T) {
	client := &fakeGeminiClient{response: `[
		{"timestamp": 2, "description": "Open the vendor portal", "navigation_path": "Finance > Vendors"},
		{"timestamp": 42, "description": "Enter the invoice amount", "navigation_path": ""},
		{"timestamp": 90, "description": "Submit the form", "navigation_path": ""}
	]`}

	a := New(client, logger.New("error"))
	moments, err := a.Analyze(context.Background(), testSegments, 120)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(moments) != 3 {
		t.Fatalf("got %d moments, want 3", len(moments))
	}
	if moments[0].NavigationPath != "Finance > Vendors" {
		t.Errorf("NavigationPath = %q", moments[0].NavigationPath)
	}
	for _, m := range moments {
		if m.UserEdited {
			t.Error("analyzer output must not be marked user-edited")
		}
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I found three interesting moments!"},
		{"missing timestamp", `[{"description": "Click save"}]`},
		{"missing description", `[{"timestamp": 10}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeGeminiClient{response: tt.response}, logger.New("error"))
			_, err := a.Analyze(context.Background(), testSegments, 120)

			var mpe *MomentParseError
			if !errors.As(err, &mpe) {
				t.Errorf("Analyze() error = %v, want MomentParseError", err)
			}
		})
	}
}

func TestNormalizeMergesNearDuplicates(t *testing.T) {
	moments := []sop.Moment{
		{Timestamp: 10, Description: "Open the form"},
		{Timestamp: 11.2, Description: "Fill the header", NavigationPath: "Sales > Orders"},
		{Timestamp: 30, Description: "Save"},
	}

	out := normalize(moments)
	if len(out) != 2 {
		t.Fatalf("got %d moments, want 2", len(out))
	}
	if out[0].Timestamp != 10 {
		t.Errorf("merged moment timestamp = %v, want earliest (10)", out[0].Timestamp)
	}
	if out[0].Description != "Open the form; Fill the header" {
		t.Errorf("merged description = %q", out[0].Description)
	}
	if out[0].NavigationPath != "Sales > Orders" {
		t.Errorf("merged navigation path = %q", out[0].NavigationPath)
	}
}

func TestNormalizeKeepsOutOfRangeTimestamps(t *testing.T) {
	moments := []sop.Moment{
		{Timestamp: -4, Description: "early"},
		{Timestamp: 60, Description: "mid"},
		{Timestamp: 500, Description: "late"},
	}

	out := normalize(moments)
	if len(out) != 3 {
		t.Fatalf("got %d moments, want 3 (keep, not drop)", len(out))
	}
	// Frame extraction owns clamping, so it can mark the frame approximate.
	// Moving the timestamp here would hide that it was ever out of range.
	if out[0].Timestamp != -4 {
		t.Errorf("negative timestamp = %v, want -4 untouched", out[0].Timestamp)
	}
	if out[2].Timestamp != 500 {
		t.Errorf("oversized timestamp = %v, want 500 untouched", out[2].Timestamp)
	}
}

func TestAnalyzeKeepsOutOfRangeTimestampForExtraction(t *testing.T) {
	client := &fakeGeminiClient{response: `[
		{"timestamp": 5, "description": "Open the form", "navigation_path": ""},
		{"timestamp": 500, "description": "Submit after the recording cut off", "navigation_path": ""}
	]`}

	a := New(client, logger.New("error"))
	moments, err := a.Analyze(context.Background(), testSegments, 120)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(moments) != 2 {
		t.Fatalf("got %d moments, want 2", len(moments))
	}
	if moments[1].Timestamp != 500 {
		t.Errorf("out-of-range timestamp = %v, want 500 untouched so extraction clamps and flags it", moments[1].Timestamp)
	}
}

func TestNormalizeSortsByTimestamp(t *testing.T) {
	moments := []sop.Moment{
		{Timestamp: 90, Description: "c"},
		{Timestamp: 10, Description: "a"},
		{Timestamp: 50, Description: "b"},
	}

	out := normalize(moments)
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp < out[i-1].Timestamp {
			t.Fatalf("moments not sorted: %+v", out)
		}
	}
}
