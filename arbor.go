package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

// Routine is a frame's payload. It receives the frame context for
// channel access and subframe management.
type Routine func(ctx context.Context, fc Context) (any, error)

// EventHandler is the shape of the open, start, end and close hooks.
type EventHandler func(ctx context.Context, fc Context) error

// RedoHandler decides after each cycle whether the frame runs another
// one.
type RedoHandler func(ctx context.Context, fc Context) (bool, error)

// ExceptionHandler reviews a failure from any cancellable stage: the
// open, start, end and redo hooks as well as the routine itself.
// Returning nil suppresses it; returning an error (the same or a
// replacement) carries it into the frame result. Either way the frame
// proceeds to its shielded close.
type ExceptionHandler func(ctx context.Context, fc Context, stageErr error) error

// Hooks are the lifecycle callbacks around a frame's routine. All fields
// are optional.
type Hooks struct {
	OnOpen      EventHandler
	OnStart     EventHandler
	OnEnd       EventHandler
	OnRedo      RedoHandler
	OnException ExceptionHandler
	OnClose     EventHandler
}

// Context is the per-frame surface handed to routines and hooks.
type Context interface {
	// FrameName returns the frame's path-qualified name within its
	// session.
	FrameName() string
	// FrameID returns the frame's unique identifier.
	FrameID() string
	// Realm reports where the routine runs.
	Realm() domain.Realm
	// HandlerCapable reports whether this frame accepts lifecycle
	// hooks, letting realm-portable routines adapt at runtime.
	HandlerCapable() bool
	// Logger returns the frame's structured logger.
	Logger() *slog.Logger

	// Environments is the read-only configuration channel filled by the
	// frame's creator.
	Environments() message.Reader
	// Requests is the channel the creator uses to steer a running frame.
	Requests() message.Updater
	// Commons is the channel shared by every frame in the session tree.
	Commons() message.Updater
	// Locals is the frame-private channel.
	Locals() message.Manager

	// CreateSubframe builds a child frame under this one. Sibling names
	// must be unique.
	CreateSubframe(routine Routine, opts ...Option) (*Frame, error)
	// StartSubframes launches child frames created by this context in a
	// new sub-session.
	StartSubframes(ctx context.Context, frames ...*Frame) (*Session, error)
}

// Option defines a functional option for configuring a Frame.
type Option func(*Frame)

// WithName overrides the name derived from the routine's function name.
func WithName(name string) Option {
	return func(f *Frame) {
		f.name = name
	}
}

// WithHooks installs the lifecycle hooks at construction time. The frame
// must be handler capable.
func WithHooks(hooks Hooks) Option {
	return func(f *Frame) {
		f.pendingHooks = &hooks
	}
}

// WithLogger sets a custom structured logger for the frame.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frame) {
		f.logger = logger
	}
}

// WithLifecycleEvents registers observability callbacks fired as the
// frame moves through its circuit.
func WithLifecycleEvents(events domain.LifecycleEvents) Option {
	return func(f *Frame) {
		f.events = f.events.Merge(events)
	}
}

// WithSubprocessRoutine turns the frame parallel: instead of the Go
// routine, the child process runs the routine registered under name (see
// RegisterRoutine). Parallel frames cannot start subframes.
func WithSubprocessRoutine(name string) Option {
	return func(f *Frame) {
		f.realm = domain.RealmParallel
		f.subprocessName = name
	}
}

// NewFrame creates a handler-capable frame around routine. The frame
// name falls back to the routine's function name; anonymous routines
// need WithName.
func NewFrame(routine Routine, opts ...Option) (*Frame, error) {
	return newFrame(routine, true, opts)
}

// NewSimpleFrame creates a frame that accepts no lifecycle hooks: just
// the routine. Configuring hooks on it fails with ErrNoHandlerCapable.
func NewSimpleFrame(routine Routine, opts ...Option) (*Frame, error) {
	return newFrame(routine, false, opts)
}

func newFrame(routine Routine, handlerCapable bool, opts []Option) (*Frame, error) {
	if routine == nil && !isParallelRequested(opts) {
		return nil, fmt.Errorf("nil routine: %w", domain.ErrFrameName)
	}

	f := &Frame{
		realm:          domain.RealmConcurrent,
		phase:          domain.PhaseLoad,
		handlerCapable: handlerCapable,
		routine:        routine,
		env:            message.NewBoard(),
		req:            message.NewBoard(),
		local:          message.NewBoard(),
		children:       make(map[string]*Frame),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.name == "" {
		name, err := deriveName(routine, f.subprocessName)
		if err != nil {
			return nil, err
		}
		f.name = name
	}
	if err := validateName(f.name); err != nil {
		return nil, err
	}
	if f.realm == domain.RealmParallel && f.subprocessName == "" {
		return nil, fmt.Errorf("parallel frame without a registered routine: %w", domain.ErrRoutineNotRegistered)
	}
	if f.pendingHooks != nil {
		if err := f.SetHooks(*f.pendingHooks); err != nil {
			return nil, err
		}
		f.pendingHooks = nil
	}
	f.id = newFrameID()
	return f, nil
}

func isParallelRequested(opts []Option) bool {
	probe := &Frame{}
	for _, opt := range opts {
		opt(probe)
	}
	return probe.realm == domain.RealmParallel
}

// deriveName extracts a usable frame name from the routine's function
// name, or from the subprocess routine name for parallel frames.
func deriveName(routine Routine, subprocessName string) (string, error) {
	if subprocessName != "" {
		return subprocessName, nil
	}
	fn := runtime.FuncForPC(reflect.ValueOf(routine).Pointer())
	if fn == nil {
		return "", fmt.Errorf("cannot derive a name from the routine: %w", domain.ErrFrameName)
	}
	full := fn.Name()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	if i := strings.LastIndex(full, "."); i >= 0 {
		full = full[i+1:]
	}
	full = strings.TrimSuffix(full, "-fm")
	if full == "" || strings.HasPrefix(full, "func") {
		return "", fmt.Errorf("anonymous routine needs WithName: %w", domain.ErrFrameName)
	}
	return full, nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("name %q: %w", name, domain.ErrFrameName)
	}
	return nil
}
