package generator

import "fmt"

// GenerationError means the model's document response could not be decoded.
// Callers fall back to Skeleton so captured moments and screenshots are
// never lost.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate document: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
