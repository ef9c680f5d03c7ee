package gemini

import "context"

// Client is the single boundary to the hosted Gemini API. Responses are raw
// text; callers own decoding and must treat the shape as untrusted.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
}
