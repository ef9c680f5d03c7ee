package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
	"github.com/procdoc/sop-flow/pkg/retry"
)

type whisperTranscriber struct {
	client *openai.Client
	model  string
	policy retry.Policy
	logger logger.Logger
}

// Transcribe calls the Whisper endpoint asking for verbose JSON, which
// carries per-segment timestamps.
func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]sop.TranscriptSegment, error) {
	t.logger.Info(ctx, "Transcribing %s via Whisper (%s)", audioPath, t.model)

	var resp openai.AudioResponse
	op := func(ctx context.Context) error {
		var err error
		resp, err = t.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    t.model,
			FilePath: audioPath,
			Format:   openai.AudioResponseFormatVerboseJSON,
			Language: language,
		})
		return err
	}

	if err := t.policy.Do(ctx, op, whisperTransient); err != nil {
		return nil, &TranscriptionError{Provider: "whisper", Err: err}
	}

	if len(resp.Segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			// Whisper occasionally omits segments; keep the text as a
			// single untimed segment rather than failing the stage.
			return []sop.TranscriptSegment{{Start: 0, End: resp.Duration, Text: text}}, nil
		}
		return nil, &TranscriptionError{Provider: "whisper", Err: fmt.Errorf("response contained no segments")}
	}

	segments := make([]sop.TranscriptSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, sop.TranscriptSegment{Start: s.Start, End: s.End, Text: text})
	}
	if len(segments) == 0 {
		return nil, &TranscriptionError{Provider: "whisper", Err: fmt.Errorf("response contained only empty segments")}
	}

	t.logger.Info(ctx, "Transcription produced %d segments", len(segments))
	return segments, nil
}

func whisperTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "EOF")
}
