package exam

import (
	"errors"
	"fmt"
)

// Error taxonomy. Checks are validated before any mutation; persistence races
// that surface as unique-constraint violations are reinterpreted into one of
// these, never leaked raw.
var (
	ErrNotEligible      = errors.New("not eligible")       // department/semester mismatch
	ErrExamUnavailable  = errors.New("exam unavailable")   // outside start..late_end, or not active
	ErrAlreadyCompleted = errors.New("already completed")  // duplicate start/submit on a terminal attempt
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrExamHasAttempts  = errors.New("exam has attempts") // deletion refused
	ErrForbidden        = errors.New("forbidden")         // actor does not own the resource
	ErrValidation       = errors.New("validation")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
