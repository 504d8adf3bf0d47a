package inventory

import (
	"errors"
	"fmt"
)

// ErrAmbiguousIdentity is returned when a submission's canonical facts
// match more than one existing host of the account. The conflict is
// surfaced to the caller instead of silently picking a record.
var ErrAmbiguousIdentity = errors.New("canonical facts match more than one host")

// ErrHostNotFound is returned by targeted single-host lookups. Batch
// operations tolerate unknown IDs instead.
var ErrHostNotFound = errors.New("host not found")

// ValidationError reports a submission or request body that the core
// refuses to process.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Reason)
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
