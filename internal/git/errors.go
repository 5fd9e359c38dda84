package git

import (
	"errors"
	"fmt"
)

// Sync errors
var (
	ErrPrecondition         = errors.New("precondition failed")
	ErrNotRepository        = errors.New("directory exists but is not a git repository")
	ErrRemoteBranchNotFound = errors.New("remote branch not found")
)

// Phase names the step of a sync call that failed.
type Phase string

const (
	PhasePrecondition Phase = "precondition"
	PhaseAuth         Phase = "auth"
	PhaseInspect      Phase = "inspect"
	PhasePrepare      Phase = "prepare"
	PhaseClone        Phase = "clone"
	PhaseRemote       Phase = "remote"
	PhaseFetch        Phase = "fetch"
	PhaseReset        Phase = "reset"
	PhaseCredential   Phase = "credential"
)

// PhaseError attributes a failure to a target URL and a sync phase.
type PhaseError struct {
	Phase Phase
	URL   string
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Phase, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

func newPhaseError(phase Phase, url, path string, err error) *PhaseError {
	return &PhaseError{Phase: phase, URL: url, Path: path, Err: err}
}

// PhaseOf returns the phase of err, or an empty Phase when err carries none.
func PhaseOf(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}
