package arbor_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/message"
)

// ExampleStart demonstrates the smallest useful session: one frame, one
// typed environment value, one result.
func ExampleStart() {
	double := func(_ context.Context, fc arbor.Context) (any, error) {
		n, err := message.Get[int](fc.Environments(), "n")
		if err != nil {
			return nil, err
		}
		return n * 2, nil
	}

	frame, err := arbor.NewSimpleFrame(double, arbor.WithName("double"))
	if err != nil {
		log.Fatal(err)
	}
	if err := frame.SetEnvironments(map[string]any{"n": 21}); err != nil {
		log.Fatal(err)
	}

	session, err := arbor.StartSession(context.Background(),
		arbor.SessionConfig{Logger: logging.NewNop()}, frame)
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	if err := session.WaitDoneAndRaise(5 * time.Second); err != nil {
		log.Fatal(err)
	}
	res, err := session.FrameResult("double")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Value())
	// Output: 42
}

// ExampleNewFrame_hooks shows the lifecycle circuit: the redo hook
// replays the routine, and close always runs.
func ExampleNewFrame_hooks() {
	attempts := 0
	routine := func(context.Context, arbor.Context) (any, error) {
		attempts++
		fmt.Printf("attempt %d\n", attempts)
		return attempts, nil
	}

	hooks := arbor.Hooks{
		OnRedo: func(context.Context, arbor.Context) (bool, error) {
			return attempts < 3, nil
		},
		OnClose: func(context.Context, arbor.Context) error {
			fmt.Println("closed")
			return nil
		},
	}

	frame, err := arbor.NewFrame(routine, arbor.WithName("retry"), arbor.WithHooks(hooks))
	if err != nil {
		log.Fatal(err)
	}

	session, err := arbor.StartSession(context.Background(),
		arbor.SessionConfig{Logger: logging.NewNop()}, frame)
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	if err := session.WaitDoneAndRaise(5 * time.Second); err != nil {
		log.Fatal(err)
	}
	// Output:
	// attempt 1
	// attempt 2
	// attempt 3
	// closed
}
