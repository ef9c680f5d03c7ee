package analyzer

import "fmt"

// MomentParseError means the model's response was not the expected JSON
// shape. Callers degrade to an empty moment list instead of failing the
// session, because the upstream output format is not contractually
// guaranteed.
type MomentParseError struct {
	Err error
}

func (e *MomentParseError) Error() string {
	return fmt.Sprintf("parse moments response: %v", e.Err)
}

func (e *MomentParseError) Unwrap() error {
	return e.Err
}
