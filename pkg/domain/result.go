package domain

import "sync"

// MarkKind classifies how a failed frame result was reviewed.
type MarkKind string

const (
	// MarkNone means nobody reviewed the failure yet.
	MarkNone MarkKind = ""
	// MarkIgnored means the failure was reviewed and deliberately
	// dismissed.
	MarkIgnored MarkKind = "ignored"
	// MarkUnexpected means the failure was reviewed and flagged as a
	// defect, with a reason.
	MarkUnexpected MarkKind = "unexpected"
)

// Mark is the review verdict attached to a frame result.
type Mark struct {
	Kind   MarkKind
	Reason string
}

// FrameResult is the published outcome of one frame. It is created once
// by the execution agent and then only its review state changes: a
// failure can be marked ignored or unexpected exactly once, and its
// error reraised exactly once.
type FrameResult struct {
	mu       sync.Mutex
	name     string
	id       string
	realm    Realm
	value    any
	err      error
	children *SessionResult
	mark     Mark
	raised   bool
	checked  bool
}

// NewFrameResult builds the immutable part of a result.
func NewFrameResult(name, id string, realm Realm, value any, err error) *FrameResult {
	return &FrameResult{name: name, id: id, realm: realm, value: value, err: err}
}

// Name returns the frame's name.
func (r *FrameResult) Name() string { return r.name }

// ID returns the frame's unique identifier.
func (r *FrameResult) ID() string { return r.id }

// Realm returns the realm the frame ran in.
func (r *FrameResult) Realm() Realm { return r.realm }

// Value returns the routine's return value. Nil for failed frames.
func (r *FrameResult) Value() any { return r.value }

// Err returns the frame's failure, or nil for a successful frame.
func (r *FrameResult) Err() error { return r.err }

// AttachChildren records the aggregate outcome of the sub-sessions this
// frame hosted. Set once, before the result reaches the store.
func (r *FrameResult) AttachChildren(children *SessionResult) {
	r.mu.Lock()
	r.children = children
	r.mu.Unlock()
}

// Children returns the nested session result of a frame that hosted
// children, or nil.
func (r *FrameResult) Children() *SessionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.children
}

// Successful reports whether the frame completed without error and,
// when it hosted children, every child outcome was resolved.
func (r *FrameResult) Successful() bool {
	if r.err != nil {
		return false
	}
	children := r.Children()
	return children == nil || children.Completes()
}

// Mark returns the current review verdict.
func (r *FrameResult) Mark() Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mark
}

// SetIgnored marks the failure as reviewed and dismissed. A result can
// carry exactly one mark.
func (r *FrameResult) SetIgnored() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mark.Kind != MarkNone {
		return ErrAlreadyMarked
	}
	r.mark = Mark{Kind: MarkIgnored}
	r.checked = true
	return nil
}

// SetUnexpected marks the failure as a defect with a reason. A result
// can carry exactly one mark.
func (r *FrameResult) SetUnexpected(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mark.Kind != MarkNone {
		return ErrAlreadyMarked
	}
	r.mark = Mark{Kind: MarkUnexpected, Reason: reason}
	r.checked = true
	return nil
}

// Reraise hands the failure back to the caller exactly once, wrapped
// with the frame name. The second call returns ErrAlreadyRaised, and a
// successful frame has nothing to raise.
func (r *FrameResult) Reraise() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		return nil
	}
	if r.raised {
		return ErrAlreadyRaised
	}
	r.raised = true
	r.checked = true
	return &FrameError{Frame: r.name, Err: r.err}
}

// Checked reports whether the failure was ever reviewed: marked,
// reraised, or swept by a drain.
func (r *FrameResult) Checked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checked
}

// SetChecked records that a drain reviewed this result.
func (r *FrameResult) SetChecked() {
	r.mu.Lock()
	r.checked = true
	r.mu.Unlock()
}

// Unchecked reports a failure nobody reviewed yet. Successful results
// are never unchecked.
func (r *FrameResult) Unchecked() bool {
	return r.err != nil && !r.Checked()
}

// SessionResult aggregates the outcomes of every frame a session ran.
// Pending counts frames that had not terminated when the aggregate was
// taken; it is zero for results gathered after a full wait.
type SessionResult struct {
	Results []*FrameResult
	Pending int
}

// Completes reports whether every frame terminated and either succeeded
// or had its failure reviewed as ignorable.
func (s *SessionResult) Completes() bool {
	if s.Pending > 0 {
		return false
	}
	for _, r := range s.Results {
		if r.Successful() {
			continue
		}
		if r.Mark().Kind != MarkIgnored {
			return false
		}
	}
	return true
}

// Unexpected returns every result marked unexpected, descending into
// nested session results, in order.
func (s *SessionResult) Unexpected() []*FrameResult {
	var out []*FrameResult
	for _, r := range s.Results {
		if r.Mark().Kind == MarkUnexpected {
			out = append(out, r)
		}
		if nested := r.Children(); nested != nil {
			out = append(out, nested.Unexpected()...)
		}
	}
	return out
}

// Frame returns the result for the named frame, or nil.
func (s *SessionResult) Frame(name string) *FrameResult {
	for _, r := range s.Results {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

// Err returns a CollectedError over the failures that were not reviewed
// as ignorable, or nil when the session completes. A frame whose only
// fault is an unresolved child contributes that child's failures.
func (s *SessionResult) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Successful() || r.Mark().Kind == MarkIgnored {
			continue
		}
		err := r.Err()
		if err == nil {
			if nested := r.Children(); nested != nil {
				err = nested.Err()
			}
		}
		if err == nil {
			err = ErrFrameStillRunning
		}
		errs = append(errs, &FrameError{Frame: r.Name(), Err: err})
	}
	if len(errs) == 0 {
		return nil
	}
	return &CollectedError{Errs: errs}
}
