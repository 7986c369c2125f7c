package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/message"
)

// Builtin routines usable from scenario files. They are also registered
// for the parallel realm, so the same names work in both.
var builtins = map[string]arbor.Routine{
	"echo":  echoRoutine,
	"sleep": sleepRoutine,
	"fail":  failRoutine,
	"count": countRoutine,
}

func init() {
	for name, routine := range builtins {
		arbor.MustRegisterRoutine(name, routine)
	}
}

// lookupBuiltin resolves a scenario routine name.
func lookupBuiltin(name string) (arbor.Routine, error) {
	r, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown routine %q", name)
	}
	return r, nil
}

// echoRoutine returns the environment key "text" and logs it.
func echoRoutine(_ context.Context, fc arbor.Context) (any, error) {
	text, err := message.GetOr(fc.Environments(), "text", "")
	if err != nil {
		return nil, err
	}
	fc.Logger().Info("echo", "text", text)
	return text, nil
}

// sleepRoutine sleeps for the environment key "millis" milliseconds,
// honoring cancellation.
func sleepRoutine(ctx context.Context, fc arbor.Context) (any, error) {
	millis, err := message.GetOr(fc.Environments(), "millis", 100)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Duration(millis) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return millis, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// failRoutine fails with the environment key "message".
func failRoutine(_ context.Context, fc arbor.Context) (any, error) {
	msg, err := message.GetOr(fc.Environments(), "message", "scenario failure")
	if err != nil {
		return nil, err
	}
	return nil, errors.New(msg)
}

// countRoutine increments a local counter each cycle and returns it,
// which makes redo loops visible in results.
func countRoutine(_ context.Context, fc arbor.Context) (any, error) {
	if !fc.Locals().Exists("count") {
		if err := message.Define(fc.Locals(), "count", 0); err != nil {
			return nil, err
		}
	}
	return message.Apply(fc.Locals(), "count", func(n int) int { return n + 1 })
}
