package run

import (
	"errors"
	"fmt"
)

// Reason names why Start refused to begin a run.
type Reason string

const (
	ReasonNoImages           Reason = "no images"
	ReasonMissingEndpoint    Reason = "missing endpoint"
	ReasonMissingInstruction Reason = "missing instruction"
	ReasonBusy               Reason = "run in progress"
)

var (
	ErrNoImages           = &GuardError{Reason: ReasonNoImages}
	ErrMissingEndpoint    = &GuardError{Reason: ReasonMissingEndpoint}
	ErrMissingInstruction = &GuardError{Reason: ReasonMissingInstruction}
	ErrRunInProgress      = &GuardError{Reason: ReasonBusy}
)

// GuardError is returned by Start when a precondition does not hold.
type GuardError struct {
	Reason Reason
}

func (e *GuardError) Error() string {
	return "run rejected: " + string(e.Reason)
}

// Is matches any GuardError with the same reason.
func (e *GuardError) Is(target error) bool {
	var t *GuardError
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// Stage identifies one of the remote calls of a run.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageGenerate Stage = "generate"
)

// StageError wraps the failure of a remote stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
