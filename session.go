package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/resultstore"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

var nowFunc = time.Now

// SessionConfig carries the session-wide collaborators. The zero value
// works: a default logger and no lifecycle events.
type SessionConfig struct {
	Logger *slog.Logger
	Events domain.LifecycleEvents

	// Commons seeds the shared channel before any frame starts. Each
	// key's type is fixed by its value.
	Commons map[string]any
}

// Session owns a set of running frames: their shared common channel,
// their results, and the error review protocol over those results.
type Session struct {
	id     string
	logger *slog.Logger
	events domain.LifecycleEvents
	store  *resultstore.Store
	common *message.Board

	mu     sync.Mutex
	frames map[string]*Frame
	order  []string
	closed bool
}

// Start launches frames as the roots of a new session.
func Start(ctx context.Context, frames ...*Frame) (*Session, error) {
	return StartSession(ctx, SessionConfig{}, frames...)
}

// StartSession launches frames as the roots of a new session with
// explicit configuration.
func StartSession(ctx context.Context, cfg SessionConfig, frames ...*Frame) (*Session, error) {
	common := message.NewBoard()
	for key, value := range cfg.Commons {
		if err := message.DefineValue(common.Manager(), key, value); err != nil {
			return nil, err
		}
	}
	s, err := newSession(cfg, common)
	if err != nil {
		return nil, err
	}
	return s, s.launch(ctx, nil, frames)
}

func newSession(cfg SessionConfig, common *message.Board) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Session{
		id:     uuid.NewString(),
		logger: logger,
		events: cfg.Events,
		store:  resultstore.New(),
		common: common,
		frames: make(map[string]*Frame),
	}, nil
}

// launch validates and starts the frames under the given parent (nil for
// session roots). When a later frame fails to start, the earlier ones
// get an advisory stop and the error surfaces.
func (s *Session) launch(ctx context.Context, parent *Frame, frames []*Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to start: %w", domain.ErrFrameUnknown)
	}
	seen := make(map[string]struct{}, len(frames))
	for _, f := range frames {
		if f.parent != parent {
			return fmt.Errorf("frame %q: %w", f.name, domain.ErrCrossContext)
		}
		if _, dup := seen[f.name]; dup {
			return fmt.Errorf("frame %q: %w", f.name, domain.ErrDuplicateFrameName)
		}
		seen[f.name] = struct{}{}
	}

	var started []*Frame
	for _, f := range frames {
		if err := f.start(ctx, s); err != nil {
			for _, prev := range started {
				_ = prev.stop(false)
			}
			return err
		}
		started = append(started, f)
		s.mu.Lock()
		s.frames[f.Path()] = f
		s.order = append(s.order, f.Path())
		s.mu.Unlock()
	}
	return nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Commons exposes the session-wide shared channel for callers outside
// any frame.
func (s *Session) Commons() message.Manager { return s.common.Manager() }

// Running returns how many of the session's frames have not terminated.
func (s *Session) Running() int { return s.store.Running() }

// WaitDone blocks until every frame terminated. Negative timeout waits
// forever, zero polls. It reports whether the session was idle when it
// returned.
func (s *Session) WaitDone(timeout time.Duration) bool {
	return s.store.WaitDone(context.Background(), timeout)
}

// WaitDoneAndRaise waits for every frame and then surfaces unreviewed
// failures the way RaiseIfFaulted does.
func (s *Session) WaitDoneAndRaise(timeout time.Duration) error {
	if !s.WaitDone(timeout) {
		return fmt.Errorf("session %s: %w", s.id, domain.ErrFrameStillRunning)
	}
	return s.RaiseIfFaulted()
}

// Gather waits for every frame and aggregates the results. It returns
// false when the wait gave up first.
func (s *Session) Gather(ctx context.Context, timeout time.Duration) (*domain.SessionResult, bool) {
	return s.store.Gather(ctx, timeout)
}

// NextBrokenFrame returns the oldest failed frame not served before, or
// nil. Each failure is served at most once.
func (s *Session) NextBrokenFrame() *domain.FrameResult { return s.store.NextBroken() }

// NextSuccessfulFrame returns the oldest successful frame not served
// before, or nil.
func (s *Session) NextSuccessfulFrame() *domain.FrameResult { return s.store.NextSuccessful() }

// NextFinishedFrame returns the oldest terminated frame not served
// before, success or failure, or nil.
func (s *Session) NextFinishedFrame() *domain.FrameResult { return s.store.NextFinished() }

// Reraise surfaces the oldest unserved failure as an error, reviewing it
// in the process. Nil when no such failure exists.
func (s *Session) Reraise() error {
	r := s.store.NextBroken()
	if r == nil {
		return nil
	}
	return r.Reraise()
}

// Faulted reports whether any frame failed without its failure being
// reviewed yet.
func (s *Session) Faulted() bool { return s.store.Faulted() }

// Drain reviews and returns every unreviewed failure.
func (s *Session) Drain() []*domain.FrameResult { return s.store.Drain(true) }

// PeekDrain returns the unreviewed failures without reviewing them.
func (s *Session) PeekDrain() []*domain.FrameResult { return s.store.Drain(false) }

// AbandonUncheckedErrors reviews every outstanding failure without
// surfacing it and reports how many it swallowed.
func (s *Session) AbandonUncheckedErrors() int { return s.store.Abandon() }

// RaiseIfFaulted drains the unreviewed failures into one aggregate
// error, or returns nil.
func (s *Session) RaiseIfFaulted() error {
	failed := s.store.Drain(true)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, r := range failed {
		errs[i] = &domain.FrameError{Frame: r.Name(), Err: r.Err()}
	}
	return &domain.CollectedError{Errs: errs}
}

// resolve looks a frame up by its path-qualified name.
func (s *Session) resolve(name string) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[name]
	if !ok {
		return nil, fmt.Errorf("frame %q: %w", name, domain.ErrFrameUnknown)
	}
	return f, nil
}

// FrameStatus returns the lifecycle phase of the named frame.
func (s *Session) FrameStatus(name string) (domain.Phase, error) {
	f, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	return s.store.Status(f.id)
}

// FrameResult returns the published result of the named, terminated
// frame.
func (s *Session) FrameResult(name string) (*domain.FrameResult, error) {
	f, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.store.Result(f.id)
}

// OfferFrameStop asks the named frame to stop. The request is advisory:
// a goroutine frame stops at its next stage boundary, a subprocess frame
// receives a stop message. With force set a subprocess frame is killed
// instead; force has no extra effect on goroutine frames.
func (s *Session) OfferFrameStop(name string, force bool) error {
	f, err := s.resolve(name)
	if err != nil {
		return err
	}
	return f.stop(force)
}

// SyncRequests forwards pending request-channel changes of the named
// subprocess frame to its child process. Goroutine frames see request
// updates immediately and need no sync.
func (s *Session) SyncRequests(name string) error {
	f, err := s.resolve(name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	proc := f.proc
	f.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.SyncRequests()
}

// ClearEndedFrame forgets a terminated frame: its result leaves every
// aggregate view and its name can be reused.
func (s *Session) ClearEndedFrame(name string) error {
	f, err := s.resolve(name)
	if err != nil {
		return err
	}
	if r, err := s.store.Result(f.id); err == nil && r.Unchecked() {
		s.logger.Warn("clearing frame with an unreviewed error",
			"frame", name, "err", r.Err())
	}
	if err := s.store.Clear(f.id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.frames, name)
	for i, path := range s.order {
		if path == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if f.parent != nil {
		f.parent.mu.Lock()
		delete(f.parent.children, f.name)
		f.parent.mu.Unlock()
	}
	s.mu.Unlock()
	return nil
}

// Close finalizes the session: every running frame gets an advisory
// stop and the session waits for termination. Failures nobody reviewed
// are logged as warnings, not raised; a failure marked unexpected is the
// one thing Close turns into an error. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	frames := make([]*Frame, 0, len(s.order))
	for _, path := range s.order {
		frames = append(frames, s.frames[path])
	}
	s.mu.Unlock()

	for _, f := range frames {
		if f.Phase() == domain.PhaseActive {
			if err := f.stop(false); err != nil {
				s.logger.Warn("stop request failed", "frame", f.Path(), "err", err)
			}
		}
	}
	s.WaitDone(-1)

	for _, r := range s.store.Drain(true) {
		s.logger.Warn("frame error was never reviewed",
			"frame", r.Name(), "err", r.Err())
	}

	unexpected := s.store.Unexpected()
	if len(unexpected) == 0 {
		return nil
	}
	errs := make([]error, len(unexpected))
	for i, r := range unexpected {
		errs[i] = &domain.UnexpectedError{
			Reason: r.Mark().Reason,
			Err:    &domain.FrameError{Frame: r.Name(), Err: r.Err()},
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &domain.CollectedError{Errs: errs}
}

// FrameSnapshot is one frame's row in a session snapshot.
type FrameSnapshot struct {
	Name       string          `json:"name"`
	ID         string          `json:"id"`
	Realm      domain.Realm    `json:"realm"`
	Phase      domain.Phase    `json:"phase"`
	Successful *bool           `json:"successful,omitempty"`
	Error      string          `json:"error,omitempty"`
	Mark       domain.MarkKind `json:"mark,omitempty"`
}

// SessionSnapshot is a point-in-time view of the session for status
// surfaces.
type SessionSnapshot struct {
	ID      string          `json:"id"`
	Running int             `json:"running"`
	Frames  []FrameSnapshot `json:"frames"`
}

// Snapshot captures the current state of every frame in the session.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	frames := make([]*Frame, 0, len(s.order))
	for _, path := range s.order {
		frames = append(frames, s.frames[path])
	}
	s.mu.Unlock()

	snap := SessionSnapshot{ID: s.id, Running: s.store.Running()}
	for _, f := range frames {
		row := FrameSnapshot{Name: f.Path(), ID: f.id, Realm: f.realm, Phase: f.Phase()}
		if result, err := s.store.Result(f.id); err == nil {
			ok := result.Successful()
			row.Successful = &ok
			if err := result.Err(); err != nil {
				row.Error = err.Error()
			}
			row.Mark = result.Mark().Kind
		}
		snap.Frames = append(snap.Frames, row)
	}
	return snap
}
