/*
Package arbor is a structured-concurrency runtime built around frames: units
of work with an explicit lifecycle, typed message channels, and session-scoped
result aggregation.

A Frame wraps a routine with lifecycle hooks (open, start, end, redo,
exception, close) and runs it in one of two realms: concurrent (a goroutine in
this process) or parallel (a child process reached by re-executing the current
binary). Frames started together form a Session, which tracks their results
and enforces the error review protocol: every failure must be reraised,
marked, or drained before the session counts as complete.

# Key Features

  - Lifecycle circuit: hooks wrap the routine, a redo hook loops it, and the
    close hook always runs, shielded from cancellation.
  - Typed channels: environment, request, common and local boards with
    define-once keys, declared types, and consume/restore semantics.
  - Two realms, one model: subprocess frames share the channel contract over
    JSON stdio, with serialization checked at write time.
  - Review-or-raise errors: a session is only complete when every failure was
    looked at, so broken frames cannot vanish silently.

# Usage

Build frames around routines and start them as a session:

	package main

	import (
		"context"
		"log"
		"time"

		"github.com/aretw0/arbor"
	)

	func greet(ctx context.Context, fc arbor.Context) (any, error) {
		fc.Logger().Info("hello from a frame")
		return "done", nil
	}

	func main() {
		frame, err := arbor.NewFrame(greet)
		if err != nil {
			log.Fatal(err)
		}
		session, err := arbor.Start(context.Background(), frame)
		if err != nil {
			log.Fatal(err)
		}
		defer session.Close()

		if err := session.WaitDoneAndRaise(5 * time.Second); err != nil {
			log.Fatal(err)
		}
	}

For parallel frames, register the routine under a name and let Main handle
the child side of the re-exec:

	func main() {
		arbor.MustRegisterRoutine("crunch", crunch)
		if handled, err := arbor.Main(); handled {
			if err != nil {
				os.Exit(1)
			}
			return
		}
		// parent program continues here
	}
*/
package arbor
