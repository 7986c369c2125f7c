package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/arbor"
)

// RunOptions controls RunScenario.
type RunOptions struct {
	Logger  *slog.Logger
	Out     io.Writer
	Timeout time.Duration // zero means wait forever
}

// RunScenario loads a scenario file, runs it to completion, renders the
// outcome, and reports whether every frame completed successfully.
func RunScenario(ctx context.Context, path string, opts RunOptions) (bool, error) {
	sc, err := LoadScenario(path)
	if err != nil {
		return false, err
	}
	return runScenario(ctx, sc, opts)
}

func runScenario(ctx context.Context, sc *Scenario, opts RunOptions) (bool, error) {
	frames, err := buildFrames(sc)
	if err != nil {
		return false, err
	}

	session, err := arbor.StartSession(ctx, arbor.SessionConfig{
		Logger:  opts.Logger,
		Commons: sc.Commons,
	}, frames...)
	if err != nil {
		return false, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = -1
	}
	if !session.WaitDone(timeout) {
		for _, f := range frames {
			_ = session.OfferFrameStop(f.Path(), true)
		}
		session.WaitDone(-1)
		session.AbandonUncheckedErrors()
		renderSnapshot(opts.Out, session.Snapshot())
		return false, fmt.Errorf("scenario timed out after %s", opts.Timeout)
	}

	snap := session.Snapshot()
	renderSnapshot(opts.Out, snap)
	failed := session.AbandonUncheckedErrors()
	return failed == 0, nil
}

// buildFrames turns the declarative specs into frames. Parallel frames
// refer to the routine by its registered name so the subprocess can
// resolve it; concurrent frames call the builtin directly.
func buildFrames(sc *Scenario) ([]*arbor.Frame, error) {
	frames := make([]*arbor.Frame, 0, len(sc.Frames))
	for _, spec := range sc.Frames {
		frame, err := buildFrame(spec)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func buildFrame(spec FrameSpec) (*arbor.Frame, error) {
	opts := []arbor.Option{}
	if spec.Name != "" {
		opts = append(opts, arbor.WithName(spec.Name))
	}
	if spec.Redo > 0 {
		opts = append(opts, arbor.WithHooks(redoHooks(spec.Redo)))
	}

	var frame *arbor.Frame
	var err error
	if spec.Realm == "parallel" {
		opts = append(opts, arbor.WithSubprocessRoutine(spec.Routine))
		frame, err = arbor.NewFrame(nil, opts...)
	} else {
		routine, lerr := lookupBuiltin(spec.Routine)
		if lerr != nil {
			return nil, lerr
		}
		frame, err = arbor.NewFrame(routine, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", spec.Name, err)
	}

	if err := frame.SetEnvironments(spec.Environments); err != nil {
		return nil, fmt.Errorf("frame %q environments: %w", spec.Name, err)
	}
	if err := frame.SetRequests(spec.Requests); err != nil {
		return nil, fmt.Errorf("frame %q requests: %w", spec.Name, err)
	}
	return frame, nil
}

// redoHooks repeats the routine the requested number of extra cycles.
func redoHooks(redos int) arbor.Hooks {
	remaining := redos
	return arbor.Hooks{
		OnRedo: func(context.Context, arbor.Context) (bool, error) {
			if remaining <= 0 {
				return false, nil
			}
			remaining--
			return true, nil
		},
	}
}
