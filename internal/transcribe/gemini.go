package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/procdoc/sop-flow/internal/gemini"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/sop"
)

const geminiTranscribePrompt = `You are a precise transcription engine. Transcribe the attached audio recording of a user narrating a screen recording.

Return ONLY a JSON array, no prose, no markdown. Each element must be:
{"start": <seconds as number>, "end": <seconds as number>, "text": "<what was said>"}

Rules:
- Segment at natural sentence boundaries.
- start and end are offsets from the beginning of the audio, in seconds.
- Preserve product names, menu labels and field names exactly as spoken.%s`

type geminiTranscriber struct {
	client gemini.Client
	logger logger.Logger
}

func (t *geminiTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]sop.TranscriptSegment, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, &TranscriptionError{Provider: "gemini", Err: fmt.Errorf("read audio: %w", err)}
	}

	langHint := ""
	if language != "" {
		langHint = fmt.Sprintf("\n- The narration language is %q.", language)
	}
	prompt := fmt.Sprintf(geminiTranscribePrompt, langHint)

	t.logger.Info(ctx, "Transcribing %s via Gemini (%d bytes)", audioPath, len(audio))

	raw, err := t.client.GenerateWithAudio(ctx, prompt, audio, "audio/wav")
	if err != nil {
		return nil, &TranscriptionError{Provider: "gemini", Err: err}
	}

	segments, err := decodeSegments(raw)
	if err != nil {
		return nil, &TranscriptionError{Provider: "gemini", Err: err}
	}

	t.logger.Info(ctx, "Transcription produced %d segments", len(segments))
	return segments, nil
}
