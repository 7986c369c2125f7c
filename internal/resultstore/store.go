// Package resultstore tracks the outcomes of the frames a session runs.
//
// The store is the single point of truth for which frames are still
// running, which terminated, and which failures were reviewed. Its lock
// is private and never held across channel or agent locks.
package resultstore

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// record tracks one bound frame: its published result plus the
// at-most-once delivery state of the accessor families.
type record struct {
	name   string
	phase  domain.Phase
	result *domain.FrameResult

	servedBroken     bool
	servedSuccessful bool
	servedFinished   bool
	cleared          bool
}

// Store aggregates frame results for one session.
type Store struct {
	mu      sync.Mutex
	order   []string
	records map[string]*record
	pending int
	waiters []chan struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Bind registers a frame that is about to run. Binding the same ID twice
// is a programming error and returns ErrDuplicateFrameName.
func (s *Store) Bind(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return domain.ErrDuplicateFrameName
	}
	s.records[id] = &record{name: name, phase: domain.PhaseActive}
	s.order = append(s.order, id)
	s.pending++
	return nil
}

// Publish installs the frame's final result. The first publish wins;
// later calls for the same ID are ignored, keeping termination monotonic.
func (s *Store) Publish(id string, result *domain.FrameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.phase == domain.PhaseTerminated {
		return
	}
	rec.result = result
	rec.phase = domain.PhaseTerminated
	s.pending--
	if s.pending == 0 {
		for _, w := range s.waiters {
			close(w)
		}
		s.waiters = nil
	}
}

// Running returns how many bound frames have not terminated yet.
func (s *Store) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// WaitDone blocks until every bound frame terminated. A negative timeout
// waits forever, zero polls, positive bounds the wait. It reports whether
// the store was idle when it returned.
func (s *Store) WaitDone(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return true
	}
	if timeout == 0 {
		s.mu.Unlock()
		return false
	}
	w := make(chan struct{})
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}
	select {
	case <-w:
		return true
	case <-expire:
		return false
	case <-ctx.Done():
		return false
	}
}

// Status returns the phase of the identified frame.
func (s *Store) Status(id string) (domain.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.cleared {
		return "", domain.ErrFrameUnknown
	}
	return rec.phase, nil
}

// Result returns the published result of a terminated frame.
func (s *Store) Result(id string) (*domain.FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.cleared {
		return nil, domain.ErrFrameUnknown
	}
	if rec.phase != domain.PhaseTerminated {
		return nil, domain.ErrFrameStillRunning
	}
	return rec.result, nil
}

// live iterates non-cleared records in bind order.
func (s *Store) live(fn func(*record) bool) {
	for _, id := range s.order {
		rec := s.records[id]
		if rec == nil || rec.cleared {
			continue
		}
		if !fn(rec) {
			return
		}
	}
}

// NextBroken returns the oldest terminated failure not yet served by
// this accessor, or nil. Each failure is served at most once.
func (s *Store) NextBroken() *domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase != domain.PhaseTerminated || rec.servedBroken || rec.result.Successful() {
			return true
		}
		rec.servedBroken = true
		out = rec.result
		return false
	})
	return out
}

// NextSuccessful returns the oldest terminated success not yet served by
// this accessor, or nil.
func (s *Store) NextSuccessful() *domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase != domain.PhaseTerminated || rec.servedSuccessful || !rec.result.Successful() {
			return true
		}
		rec.servedSuccessful = true
		out = rec.result
		return false
	})
	return out
}

// NextFinished returns the oldest terminated frame not yet served by
// this accessor, success or failure, or nil.
func (s *Store) NextFinished() *domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase != domain.PhaseTerminated || rec.servedFinished {
			return true
		}
		rec.servedFinished = true
		out = rec.result
		return false
	})
	return out
}

// Drain returns every unreviewed failure. With consume set, the failures
// are marked checked so a later drain will not see them again.
func (s *Store) Drain(consume bool) []*domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase == domain.PhaseTerminated && rec.result.Unchecked() {
			if consume {
				rec.result.SetChecked()
			}
			out = append(out, rec.result)
		}
		return true
	})
	return out
}

// Faulted reports whether any terminated frame holds an unreviewed
// failure.
func (s *Store) Faulted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	faulted := false
	s.live(func(rec *record) bool {
		if rec.phase == domain.PhaseTerminated && rec.result.Unchecked() {
			faulted = true
			return false
		}
		return true
	})
	return faulted
}

// Abandon marks every unreviewed failure as checked and returns how many
// it swallowed.
func (s *Store) Abandon() int {
	return len(s.Drain(true))
}

// Unexpected returns every terminated result carrying an unexpected
// mark, in bind order, descending into the nested session results of
// frames that hosted children.
func (s *Store) Unexpected() []*domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase != domain.PhaseTerminated {
			return true
		}
		if rec.result.Mark().Kind == domain.MarkUnexpected {
			out = append(out, rec.result)
		}
		if nested := rec.result.Children(); nested != nil {
			out = append(out, nested.Unexpected()...)
		}
		return true
	})
	return out
}

// Clear forgets a terminated frame entirely. Running frames cannot be
// cleared.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.cleared {
		return domain.ErrFrameUnknown
	}
	if rec.phase != domain.PhaseTerminated {
		return domain.ErrFrameStillRunning
	}
	rec.cleared = true
	return nil
}

// All returns the live results in bind order. Frames still running
// contribute nothing.
func (s *Store) All() []*domain.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FrameResult
	s.live(func(rec *record) bool {
		if rec.phase == domain.PhaseTerminated {
			out = append(out, rec.result)
		}
		return true
	})
	return out
}

// Aggregate returns the session outcome as of now, without waiting:
// the live results plus the count of frames still running.
func (s *Store) Aggregate() *domain.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &domain.SessionResult{Pending: s.pending}
	s.live(func(rec *record) bool {
		if rec.phase == domain.PhaseTerminated {
			out.Results = append(out.Results, rec.result)
		}
		return true
	})
	return out
}

// Gather waits for every frame to terminate and aggregates the live
// results. It returns false when the wait gave up first.
func (s *Store) Gather(ctx context.Context, timeout time.Duration) (*domain.SessionResult, bool) {
	if !s.WaitDone(ctx, timeout) {
		return nil, false
	}
	return &domain.SessionResult{Results: s.All()}, true
}
