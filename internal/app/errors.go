package app

import "fmt"

// PreflightError reports a failed environment guard (credentials, content
// root). Pre-flight failures are fatal, never retried, and always exit with
// code 1 before any plan is computed.
type PreflightError struct {
	Check string
	Err   error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("pre-flight check failed (%s): %v", e.Check, e.Err)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}
