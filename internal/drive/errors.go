package drive

import "fmt"

// AuthError covers missing, expired or rejected OAuth credentials.
// Remediation is re-authenticating, not retrying.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("drive auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("drive auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
