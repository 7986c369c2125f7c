// Package agent executes a frame's work and publishes its result exactly
// once. Two agents exist, one per realm: Goroutine runs the circuit on a
// goroutine in-process, Process runs the routine in a child process and
// relays channel traffic over stdio.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Agent drives one frame from start to published result.
type Agent interface {
	// Start launches the frame. A frame starts at most once.
	Start(ctx context.Context) error
	// Cancel requests the frame to stop. Cancellation is advisory for
	// in-process frames; force applies only to subprocess frames, which
	// it kills outright.
	Cancel(force bool) error
	// WaitDone blocks until the result is published. Negative timeout
	// waits forever, zero polls. It reports whether the frame is done.
	WaitDone(timeout time.Duration) bool
}

// Goroutine runs a frame's circuit on a goroutine.
type Goroutine struct {
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	run     func(context.Context) (any, error)
	publish func(any, error)
}

// NewGoroutine builds the concurrent-realm agent. run is the frame's full
// circuit; publish receives the outcome exactly once.
func NewGoroutine(run func(context.Context) (any, error), publish func(any, error)) *Goroutine {
	return &Goroutine{
		run:     run,
		publish: publish,
		done:    make(chan struct{}),
	}
}

// Start launches the circuit. The second call fails with
// ErrFrameStarted.
func (g *Goroutine) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return domain.ErrFrameStarted
	}
	g.started = true
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.mu.Unlock()

	go func() {
		defer cancel()
		value, err := g.run(runCtx)
		g.publish(value, err)
		close(g.done)
	}()
	return nil
}

// Cancel asks the circuit to stop at its next stage boundary. There is
// no force for an in-process frame; a goroutine cannot be killed.
func (g *Goroutine) Cancel(force bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	return nil
}

// WaitDone blocks until the result is published.
func (g *Goroutine) WaitDone(timeout time.Duration) bool {
	return waitDone(g.done, timeout)
}

// waitDone implements the shared negative/zero/positive timeout
// contract over a completion channel.
func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	if timeout < 0 {
		<-done
		return true
	}
	if timeout == 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
