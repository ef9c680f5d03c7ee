package transcribe

import "fmt"

// TranscriptionError wraps transcription failures after retries are
// exhausted or the provider returned an undecodable response.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription via %s failed: %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
