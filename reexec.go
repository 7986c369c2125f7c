package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/arbor/internal/agent"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

// routineRegistry holds the routines subprocess frames may run. Parallel
// execution re-executes the current binary, so both parent and child
// must register the same names at init time.
var routineRegistry = struct {
	mu sync.RWMutex
	m  map[string]Routine
}{m: make(map[string]Routine)}

// RegisterRoutine makes routine available to parallel frames under name.
// Register from an init function or early in main, before Main runs.
func RegisterRoutine(name string, routine Routine) error {
	if err := validateName(name); err != nil {
		return err
	}
	if routine == nil {
		return fmt.Errorf("nil routine for %q: %w", name, domain.ErrRoutineNotRegistered)
	}
	routineRegistry.mu.Lock()
	defer routineRegistry.mu.Unlock()
	if _, exists := routineRegistry.m[name]; exists {
		return fmt.Errorf("routine %q: %w", name, domain.ErrDuplicateFrameName)
	}
	routineRegistry.m[name] = routine
	return nil
}

// MustRegisterRoutine is RegisterRoutine for init-time wiring; it panics
// on error.
func MustRegisterRoutine(name string, routine Routine) {
	if err := RegisterRoutine(name, routine); err != nil {
		panic(err)
	}
}

// Main runs the child-process side of parallel frames. Call it first in
// main: when it reports handled, this process was spawned as a frame
// child, the routine already ran, and main should exit.
//
//	func main() {
//		if handled, err := arbor.Main(); handled {
//			if err != nil {
//				os.Exit(1)
//			}
//			return
//		}
//		// normal program
//	}
func Main() (handled bool, err error) {
	name := os.Getenv(agent.RoutineEnv)
	if name == "" {
		return false, nil
	}
	logger := logging.New(slog.LevelInfo)
	err = agent.ChildMain(context.Background(), name, os.Stdin, os.Stdout, logger, childResolver(logger))
	if err != nil {
		logger.Error("subprocess frame failed", "routine", name, "err", err)
	}
	return true, err
}

func childResolver(logger *slog.Logger) func(string) (agent.ChildRoutine, bool) {
	return func(name string) (agent.ChildRoutine, bool) {
		routineRegistry.mu.RLock()
		routine, ok := routineRegistry.m[name]
		routineRegistry.mu.RUnlock()
		if !ok {
			return nil, false
		}
		return func(ctx context.Context, boards *agent.ChildBoards) (any, error) {
			fc := &childContext{
				boards: boards,
				logger: logger.With("frame", boards.FrameName, "realm", domain.RealmParallel),
			}
			return routine(ctx, fc)
		}, true
	}
}

// childContext is the Context of a routine running inside a child
// process. It is a leaf: subframe operations fail.
type childContext struct {
	boards *agent.ChildBoards
	logger *slog.Logger
}

var _ Context = (*childContext)(nil)

func (cc *childContext) FrameName() string    { return cc.boards.FrameName }
func (cc *childContext) FrameID() string      { return cc.boards.FrameID }
func (cc *childContext) Realm() domain.Realm  { return domain.RealmParallel }
func (cc *childContext) HandlerCapable() bool { return false }
func (cc *childContext) Logger() *slog.Logger { return cc.logger }

func (cc *childContext) Environments() message.Reader { return cc.boards.Environments.Reader() }
func (cc *childContext) Requests() message.Updater    { return cc.boards.Requests.Updater() }
func (cc *childContext) Commons() message.Updater     { return cc.boards.Commons.Updater() }
func (cc *childContext) Locals() message.Manager      { return cc.boards.Locals.Manager() }

func (cc *childContext) CreateSubframe(Routine, ...Option) (*Frame, error) {
	return nil, fmt.Errorf("frame %q: %w", cc.boards.FrameName, domain.ErrSubframeLeaf)
}

func (cc *childContext) StartSubframes(context.Context, ...*Frame) (*Session, error) {
	return nil, fmt.Errorf("frame %q: %w", cc.boards.FrameName, domain.ErrSubframeLeaf)
}
