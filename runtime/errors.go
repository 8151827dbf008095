package runtime

import (
	"errors"
	"fmt"
)

// Recoverable failures surfaced to the caller as reasons, not crashes. The
// HTTP layer translates them to status codes; nothing in this package panics
// past its own scope.
var (
	// ErrNoMatch means the matcher found nothing above the similarity floor.
	ErrNoMatch = errors.New("no matching task found")

	// ErrEmptyTemplate means the selected template has no steps. Treated the
	// same as ErrNoMatch by callers.
	ErrEmptyTemplate = errors.New("template has no steps")

	// ErrUnresolvedSelector means a step referenced an element id with no
	// entry in the selector table.
	ErrUnresolvedSelector = errors.New("element selector not found")

	// ErrEmptyInput means the upstream input collaborator produced no text.
	ErrEmptyInput = errors.New("no input text provided")

	// ErrRunActive means a run was requested while another is in flight. The
	// action executor is a single browser session and is not safe for
	// concurrent use.
	ErrRunActive = errors.New("an automation run is already in progress")
)

// StepError reports the failure of a single step. It carries the 1-based step
// index so callers can render "step 3 failed: element not found" messages.
// Wraps the underlying cause for errors.Is / errors.As.
type StepError struct {
	Step  int
	Total int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d failed: %v", e.Step, e.Total, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func newStepError(step, total int, err error) *StepError {
	return &StepError{Step: step, Total: total, Err: err}
}
