// Package circuit runs the lifecycle of a single frame: the hook
// sequence around the routine, the redo loop, exception review, and the
// shielded teardown.
//
// The package is deliberately ignorant of frames, channels and sessions:
// callers hand it plain closures. That keeps the state machine testable
// in isolation and free of import cycles with the packages that own the
// richer types.
package circuit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// Callbacks are the stages of one circuit. Nil stages are skipped.
// Routine is mandatory.
type Callbacks struct {
	Open      func(context.Context) error
	Start     func(context.Context) error
	Routine   func(context.Context) (any, error)
	End       func(context.Context) error
	Redo      func(context.Context) (bool, error)
	Exception func(context.Context, error) error
	Close     func(context.Context) error
}

// StageObserver is notified after each stage completes, with the cycle
// number (0-based) and the stage's error, if any.
type StageObserver func(stage domain.Stage, cycle int, err error)

// ErrNoRoutine is returned when Run is called without a routine.
var ErrNoRoutine = errors.New("circuit has no routine")

// Run drives the circuit to completion and returns the routine's value
// from its final cycle.
//
// The shape is: Open once, then cycles of Start, Routine, End, Redo for
// as long as Redo answers true, then Close. A failure in any of those
// stages is offered to Exception, which can suppress it by returning
// nil; suppressed or not, the circuit then proceeds straight to Close.
// Cancellation is honored between stages, but a routine that returns
// cleanly under a canceled context keeps its value: the remaining
// stages are skipped and no error is recorded. Close always runs,
// shielded from the caller's cancellation. Errors from Close join the
// main error.
func Run(ctx context.Context, logger *slog.Logger, cb Callbacks, observe StageObserver) (any, error) {
	if cb.Routine == nil {
		return nil, ErrNoRoutine
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if observe == nil {
		observe = func(domain.Stage, int, error) {}
	}

	r := runner{ctx: ctx, logger: logger, cb: cb, observe: observe}
	value, err := r.cycles()

	// Teardown is shielded: it runs to completion even when the caller's
	// context is already canceled.
	if cb.Close != nil {
		closeCtx := context.WithoutCancel(ctx)
		closeErr := cb.Close(closeCtx)
		r.observe(domain.StageClose, r.cycle, closeErr)
		if closeErr != nil {
			logger.Error("close hook failed", "err", closeErr)
			err = errors.Join(err, closeErr)
		}
	}
	return value, err
}

type runner struct {
	ctx     context.Context
	logger  *slog.Logger
	cb      Callbacks
	observe StageObserver
	cycle   int
}

// cycles runs Open plus the Start/Routine/End/Redo loop. The returned
// error is the circuit's main error, before teardown joins in. A halt
// from any stage ends the loop; a cancel observed after a clean routine
// return ends it without an error.
func (r *runner) cycles() (any, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if halt, err := r.stage(domain.StageOpen, r.cb.Open); halt {
		return nil, err
	}

	var value any
	completed := false
	for {
		if r.ctx.Err() != nil {
			if completed {
				return value, nil
			}
			return nil, r.ctx.Err()
		}
		if halt, err := r.stage(domain.StageStart, r.cb.Start); halt {
			if err != nil {
				return nil, err
			}
			return value, nil
		}

		v, halt, err := r.routine()
		if halt {
			return nil, err
		}
		value, completed = v, true

		if r.ctx.Err() != nil {
			return value, nil
		}
		if halt, err := r.stage(domain.StageEnd, r.cb.End); halt {
			if err != nil {
				return nil, err
			}
			return value, nil
		}

		if r.ctx.Err() != nil {
			return value, nil
		}
		again, halt, err := r.redo()
		if halt {
			if err != nil {
				return nil, err
			}
			return value, nil
		}
		if !again {
			return value, nil
		}
		r.cycle++
	}
}

// review offers a stage failure to the exception reviewer. Nil means
// the failure was suppressed.
func (r *runner) review(err error) error {
	if r.cb.Exception == nil {
		return err
	}
	reviewed := r.cb.Exception(r.ctx, err)
	r.observe(domain.StageException, r.cycle, reviewed)
	if reviewed == nil {
		r.logger.Info("failure suppressed", "cycle", r.cycle)
	}
	return reviewed
}

// stage runs one optional hook. A failure halts the cycle loop after
// review, suppressed or not.
func (r *runner) stage(name domain.Stage, hook func(context.Context) error) (bool, error) {
	if hook == nil {
		return false, nil
	}
	err := hook(r.ctx)
	r.observe(name, r.cycle, err)
	if err == nil {
		return false, nil
	}
	r.logger.Error("hook failed", "stage", name, "cycle", r.cycle, "err", err)
	return true, r.review(err)
}

// routine runs the payload. A failure halts the cycle loop after
// review; a suppressed failure yields a nil value.
func (r *runner) routine() (any, bool, error) {
	value, err := r.cb.Routine(r.ctx)
	r.observe(domain.StageRoutine, r.cycle, err)
	if err == nil {
		return value, false, nil
	}
	r.logger.Error("routine failed", "cycle", r.cycle, "err", err)
	return nil, true, r.review(err)
}

func (r *runner) redo() (bool, bool, error) {
	if r.cb.Redo == nil {
		return false, false, nil
	}
	again, err := r.cb.Redo(r.ctx)
	r.observe(domain.StageRedo, r.cycle, err)
	if err == nil {
		return again, false, nil
	}
	r.logger.Error("redo hook failed", "cycle", r.cycle, "err", err)
	return false, true, r.review(err)
}
