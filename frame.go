package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/agent"
	"github.com/aretw0/arbor/internal/circuit"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

func newFrameID() string { return uuid.NewString() }

// Frame is one unit of structured work: a routine plus its lifecycle
// hooks, channels, and realm. A frame is configured during the load
// phase, started exactly once, and terminates with a published result.
type Frame struct {
	mu sync.Mutex

	id             string
	name           string
	realm          domain.Realm
	phase          domain.Phase
	handlerCapable bool

	routine        Routine
	subprocessName string
	hooks          Hooks
	pendingHooks   *Hooks

	logger *slog.Logger
	events domain.LifecycleEvents

	env   *message.Board
	req   *message.Board
	local *message.Board

	parent      *Frame
	children    map[string]*Frame
	subSessions []*Session

	// Bound at start.
	session *Session
	runner  *agent.Goroutine
	proc    *agent.Process
}

// Name returns the frame's simple name.
func (f *Frame) Name() string { return f.name }

// ID returns the frame's unique identifier.
func (f *Frame) ID() string { return f.id }

// Realm reports where the frame's routine runs.
func (f *Frame) Realm() domain.Realm { return f.realm }

// Phase returns the frame's current lifecycle phase.
func (f *Frame) Phase() domain.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Path returns the session-unique, slash-joined name of the frame.
func (f *Frame) Path() string {
	if f.parent == nil {
		return f.name
	}
	return f.parent.Path() + "/" + f.name
}

// HandlerCapable reports whether lifecycle hooks can be configured.
func (f *Frame) HandlerCapable() bool { return f.handlerCapable }

// SetHooks installs the lifecycle hooks. Only handler-capable frames in
// the load phase accept hooks.
func (f *Frame) SetHooks(hooks Hooks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.handlerCapable {
		return fmt.Errorf("frame %q: %w", f.name, domain.ErrNoHandlerCapable)
	}
	if f.phase != domain.PhaseLoad {
		return fmt.Errorf("frame %q: %w", f.name, domain.ErrFrameStarted)
	}
	f.hooks = hooks
	return nil
}

// SetEnvironments defines configuration keys on the environment channel.
// Each key's type is fixed by its value. Only allowed before start.
func (f *Frame) SetEnvironments(values map[string]any) error {
	return f.defineAll(f.env, values)
}

// SetRequests defines steering keys on the request channel. Each key's
// type is fixed by its value. Only allowed before start.
func (f *Frame) SetRequests(values map[string]any) error {
	return f.defineAll(f.req, values)
}

func (f *Frame) defineAll(board *message.Board, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != domain.PhaseLoad {
		return fmt.Errorf("frame %q: %w", f.name, domain.ErrFrameStarted)
	}
	m := board.Manager()
	for key, value := range values {
		if err := message.DefineValue(m, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Environments exposes the environment channel for typed definitions
// before start.
func (f *Frame) Environments() message.Manager { return f.env.Manager() }

// Requests exposes the request channel. After start, updates reach a
// subprocess frame only through Session.SyncRequests.
func (f *Frame) Requests() message.Manager { return f.req.Manager() }

// stop requests the frame to stop. Advisory for both realms; force kills
// a subprocess frame outright and is ignored for goroutine frames.
func (f *Frame) stop(force bool) error {
	f.mu.Lock()
	proc, runner := f.proc, f.runner
	f.mu.Unlock()
	if proc != nil {
		return proc.Cancel(force)
	}
	if runner != nil {
		return runner.Cancel(force)
	}
	return fmt.Errorf("frame %q: %w", f.name, domain.ErrFrameUnknown)
}

// start binds the frame to a session and launches its circuit on the
// in-process agent. For parallel frames the routine stage spawns the
// child process; hooks always run parent-side.
func (f *Frame) start(ctx context.Context, s *Session) error {
	if f.realm == domain.RealmParallel {
		// Everything a subprocess frame shares must survive the wire.
		for _, board := range []*message.Board{f.env, f.req, s.common} {
			if err := board.RequireSerializable(); err != nil {
				return fmt.Errorf("frame %q: %w", f.name, err)
			}
		}
	}

	f.mu.Lock()
	if f.phase != domain.PhaseLoad {
		f.mu.Unlock()
		return fmt.Errorf("frame %q: %w", f.name, domain.ErrFrameStarted)
	}
	if f.logger == nil {
		f.logger = s.logger
	}
	f.logger = f.logger.With("frame", f.Path(), "realm", f.realm)
	f.session = s
	f.phase = domain.PhaseActive
	f.mu.Unlock()

	if err := s.store.Bind(f.id, f.Path()); err != nil {
		return err
	}

	fc := &frameContext{frame: f}
	events := s.events.Merge(f.events)
	publish := func(value any, err error) {
		f.mu.Lock()
		f.phase = domain.PhaseTerminated
		subs := f.subSessions
		f.mu.Unlock()
		result := domain.NewFrameResult(f.Path(), f.id, f.realm, value, err)
		if nested := nestedResult(subs); nested != nil {
			result.AttachChildren(nested)
		}
		s.store.Publish(f.id, result)
		if events.OnFrameDone != nil {
			ev := &domain.FrameEvent{EventBase: f.eventBase(domain.EventFrameDone), Successful: err == nil}
			if err != nil {
				ev.Error = err.Error()
			}
			events.OnFrameDone(context.WithoutCancel(ctx), ev)
		}
	}

	runner := agent.NewGoroutine(func(runCtx context.Context) (any, error) {
		return circuit.Run(runCtx, f.logger, f.circuitCallbacks(fc), f.stageObserver(ctx, events))
	}, publish)

	f.mu.Lock()
	f.runner = runner
	f.mu.Unlock()

	if events.OnFrameStart != nil {
		events.OnFrameStart(ctx, &domain.FrameEvent{EventBase: f.eventBase(domain.EventFrameStart)})
	}
	return runner.Start(ctx)
}

// circuitCallbacks adapts the frame's hooks and routine to the circuit's
// plain-closure shape.
func (f *Frame) circuitCallbacks(fc *frameContext) circuit.Callbacks {
	cb := circuit.Callbacks{Routine: f.routineStage(fc)}
	wrap := func(h EventHandler) func(context.Context) error {
		if h == nil {
			return nil
		}
		return func(ctx context.Context) error { return h(ctx, fc) }
	}
	cb.Open = wrap(f.hooks.OnOpen)
	cb.Start = wrap(f.hooks.OnStart)
	cb.End = wrap(f.hooks.OnEnd)
	cb.Close = wrap(f.hooks.OnClose)
	if f.hooks.OnRedo != nil {
		cb.Redo = func(ctx context.Context) (bool, error) { return f.hooks.OnRedo(ctx, fc) }
	}
	if f.hooks.OnException != nil {
		cb.Exception = func(ctx context.Context, err error) error { return f.hooks.OnException(ctx, fc, err) }
	}
	return cb
}

// routineStage returns the circuit's routine callback: the Go routine
// for concurrent frames, the child-process round trip for parallel ones.
func (f *Frame) routineStage(fc *frameContext) func(context.Context) (any, error) {
	if f.realm == domain.RealmConcurrent {
		return func(ctx context.Context) (any, error) { return f.routine(ctx, fc) }
	}
	return func(ctx context.Context) (any, error) {
		var (
			value any
			err   error
		)
		done := make(chan struct{})
		proc := agent.NewProcess(agent.ProcessConfig{
			Routine:      f.subprocessName,
			FrameName:    f.Path(),
			FrameID:      f.id,
			Environments: f.env,
			Requests:     f.req,
			Commons:      f.session.common,
			Logger:       f.logger,
			Publish: func(v any, e error) {
				value, err = v, e
				close(done)
			},
		})
		f.mu.Lock()
		f.proc = proc
		f.mu.Unlock()
		if startErr := proc.Start(ctx); startErr != nil {
			return nil, startErr
		}
		<-done
		return value, err
	}
}

func (f *Frame) stageObserver(ctx context.Context, events domain.LifecycleEvents) circuit.StageObserver {
	if events.OnStage == nil {
		return nil
	}
	return func(stage domain.Stage, cycle int, err error) {
		ev := &domain.StageEvent{
			EventBase: f.eventBase(domain.EventStage),
			Stage:     stage,
			Cycle:     cycle,
		}
		if err != nil {
			ev.IsError = true
			ev.Error = err.Error()
		}
		events.OnStage(context.WithoutCancel(ctx), ev)
	}
}

func (f *Frame) eventBase(typ domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: nowFunc(),
		Type:      typ,
		FrameName: f.Path(),
		FrameID:   f.id,
		Realm:     f.realm,
	}
}

// nestedResult merges the outcomes of the sub-sessions a frame hosted.
// Child frames still running count as pending, which keeps the hosting
// frame from reporting success over unresolved work.
func nestedResult(subs []*Session) *domain.SessionResult {
	if len(subs) == 0 {
		return nil
	}
	nested := &domain.SessionResult{}
	for _, sub := range subs {
		agg := sub.store.Aggregate()
		nested.Results = append(nested.Results, agg.Results...)
		nested.Pending += agg.Pending
	}
	return nested
}

// defaultLogger builds the logger frames fall back to when neither the
// frame nor the session carries one.
func defaultLogger() *slog.Logger { return logging.New(slog.LevelInfo) }
