package transcribe

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/gemini"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/pkg/retry"
)

// New selects the transcription provider from config. Gemini reuses the
// shared client; Whisper gets its own OpenAI client and retry policy.
func New(cfg *config.Config, gem gemini.Client, policy retry.Policy, log logger.Logger) Transcriber {
	if cfg.AI.Transcriber == "whisper" {
		return &whisperTranscriber{
			client: openai.NewClient(cfg.AI.OpenAI.APIKey),
			model:  cfg.AI.OpenAI.WhisperModel,
			policy: policy,
			logger: log,
		}
	}
	return &geminiTranscriber{client: gem, logger: log}
}
