package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestGoroutineRunAndPublish(t *testing.T) {
	results := make(chan any, 1)
	g := NewGoroutine(
		func(context.Context) (any, error) { return 7, nil },
		func(v any, err error) {
			if err != nil {
				t.Errorf("publish err: %v", err)
			}
			results <- v
		},
	)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !g.WaitDone(time.Second) {
		t.Fatal("frame did not finish")
	}
	if got := <-results; got != 7 {
		t.Fatalf("published value: got %v", got)
	}
}

func TestGoroutineDoubleStart(t *testing.T) {
	g := NewGoroutine(
		func(context.Context) (any, error) { return nil, nil },
		func(any, error) {},
	)
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); !errors.Is(err, domain.ErrFrameStarted) {
		t.Fatalf("second start: got %v, want ErrFrameStarted", err)
	}
}

func TestGoroutineCancel(t *testing.T) {
	started := make(chan struct{})
	g := NewGoroutine(
		func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
		func(v any, err error) {
			if !errors.Is(err, context.Canceled) {
				t.Errorf("published err: %v", err)
			}
		},
	)

	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := g.Cancel(false); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !g.WaitDone(time.Second) {
		t.Fatal("canceled frame did not finish")
	}
}

func TestGoroutineWaitDoneContract(t *testing.T) {
	release := make(chan struct{})
	g := NewGoroutine(
		func(context.Context) (any, error) { <-release; return nil, nil },
		func(any, error) {},
	)
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if g.WaitDone(0) {
		t.Fatal("poll while running must report busy")
	}
	if g.WaitDone(10 * time.Millisecond) {
		t.Fatal("bounded wait while running must time out")
	}
	close(release)
	if !g.WaitDone(-1) {
		t.Fatal("unbounded wait must return once done")
	}
	if !g.WaitDone(0) {
		t.Fatal("poll after done must report done")
	}
}
