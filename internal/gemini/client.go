package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

func (c *implClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, genai.Text(prompt), nil)
}

// GenerateJSON asks the model for an application/json response. The MIME
// hint makes well-formed output far more likely but does not guarantee it.
func (c *implClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	return c.generate(ctx, genai.Text(prompt), cfg)
}

func (c *implClient) GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	return c.generate(ctx, contents, cfg)
}

func (c *implClient) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var text string

	op := func(ctx context.Context) error {
		key := c.pickKey()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}

		result, err := client.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			if isQuotaError(err) {
				c.logger.Warn(ctx, "Gemini key rate limited, rotating...")
				c.rotateKey()
			}
			return fmt.Errorf("generate content: %w", err)
		}

		text = extractText(result)
		if text == "" {
			return fmt.Errorf("empty response from Gemini")
		}
		return nil
	}

	if err := c.policy.Do(ctx, op, isTransient); err != nil {
		return "", err
	}
	return text, nil
}

func (c *implClient) pickKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKeys[c.currentKey]
}

func (c *implClient) rotateKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentKey = (c.currentKey + 1) % len(c.apiKeys)
}

func extractText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// isTransient reports whether a failure is worth another attempt: rate
// limits, server errors, and network hiccups. Bad requests are permanent.
func isTransient(err error) bool {
	msg := err.Error()
	if isQuotaError(err) {
		return true
	}
	for _, marker := range []string{"500", "502", "503", "504", "UNAVAILABLE", "DEADLINE_EXCEEDED", "timeout", "connection reset", "EOF", "empty response"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
