package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFrameName is returned when a frame name cannot be derived or is
// syntactically invalid.
var ErrFrameName = errors.New("invalid frame name")

// ErrDuplicateFrameName is returned when a sibling with the same name
// already exists under the parent.
var ErrDuplicateFrameName = errors.New("duplicate frame name")

// ErrFrameStarted is returned when a frame is configured or started
// after it already left the load phase.
var ErrFrameStarted = errors.New("frame already started")

// ErrNoHandlerCapable is returned when handler setup is attempted on a
// frame created without handler capability.
var ErrNoHandlerCapable = errors.New("frame is not handler capable")

// ErrCrossContext is returned when a frame context is used to operate on
// frames belonging to a different frame's scope.
var ErrCrossContext = errors.New("frame belongs to another context")

// ErrSubframeLeaf is returned when a parallel-realm frame tries to start
// subframes.
var ErrSubframeLeaf = errors.New("parallel frames cannot start subframes")

// ErrFrameStillRunning is returned by operations that require a frame to
// have terminated first.
var ErrFrameStillRunning = errors.New("frame still running")

// ErrFrameUnknown is returned when a frame name or ID does not resolve
// within the session.
var ErrFrameUnknown = errors.New("unknown frame")

// ErrAlreadyMarked is returned when a frame result that already carries
// a mark is marked again.
var ErrAlreadyMarked = errors.New("frame result already marked")

// ErrAlreadyRaised is returned when a frame error is reraised a second
// time.
var ErrAlreadyRaised = errors.New("frame error already raised")

// ErrRoutineNotRegistered is returned when a parallel frame references a
// routine name absent from the process registry.
var ErrRoutineNotRegistered = errors.New("routine not registered")

// FrameError wraps a routine or hook failure with the frame it came
// from.
type FrameError struct {
	Frame string
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %q: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// UnexpectedError is the outcome of marking a failure as unexpected: the
// reviewer's reason wraps the original failure.
type UnexpectedError struct {
	Reason string
	Err    error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected: %s: %v", e.Reason, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// CollectedError aggregates the failures of several frames, as gathered
// by a session drain.
type CollectedError struct {
	Errs []error
}

func (e *CollectedError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d frame(s) failed: %s", len(e.Errs), strings.Join(parts, "; "))
}

func (e *CollectedError) Unwrap() []error { return e.Errs }
