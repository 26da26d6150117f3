package flowgate

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kind constants for classification. Nothing in this package is
// fatal to the host application: the contract in the worst case is "quota
// undercounted" or "milestones not shown", never a crash, so classification
// exists to make the swallowed-failure log lines say what was swallowed.
const (
	// FailureStorage indicates a client-side storage backend was
	// unavailable or rejected a write. Treated as count=0 / no-op write.
	FailureStorage = "storage"

	// FailureCollaborator indicates an external data-access or stats call
	// failed. The local completion UI is not rolled back.
	FailureCollaborator = "collaborator"

	// FailureDefinition indicates a malformed workflow definition, such as
	// a cursor with no matching step. Rendered as an inert state.
	FailureDefinition = "definition"
)

var (
	// ErrStepNotFound is returned when the cursor references a position
	// with no matching step.
	ErrStepNotFound = errors.New("step not found")

	// ErrBlocked is returned when a transition is attempted while the gate
	// disallows proceeding.
	ErrBlocked = errors.New("blocked by quota gate")

	// ErrStepInvalid is returned when a transition requires the current
	// step to be complete and it is not.
	ErrStepInvalid = errors.New("current step is not complete")

	// ErrRunTerminal is returned when a transition is attempted after the
	// run has completed.
	ErrRunTerminal = errors.New("run already completed")
)

// GateError is a structured error carrying a failure classification. It
// supports Go's error wrapping patterns with Unwrap().
type GateError struct {
	Kind    string `json:"kind"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

// Error implements the error interface
func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

// Unwrap implements the error unwrapping interface for errors.Is and errors.As
func (e *GateError) Unwrap() error {
	return e.Wrapped
}

// NewGateError creates a new GateError with the given kind and cause.
func NewGateError(kind, cause string) *GateError {
	return &GateError{Kind: kind, Cause: cause}
}

// ClassifyFailure attempts to classify an error into a GateError so the
// caller can log the swallowed failure with a stable kind.
func ClassifyFailure(err error) *GateError {
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		return gateErr
	}
	if errors.Is(err, ErrStepNotFound) {
		return &GateError{Kind: FailureDefinition, Cause: err.Error(), Wrapped: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "storage") || strings.Contains(msg, "quota exceeded") || strings.Contains(msg, "disabled") {
		return &GateError{Kind: FailureStorage, Cause: err.Error(), Wrapped: err}
	}
	return &GateError{Kind: FailureCollaborator, Cause: err.Error(), Wrapped: err}
}
