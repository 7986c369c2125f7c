package arbor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

// frameContext is the Context a running frame hands to its routine and
// hooks. It scopes channel access by capability and anchors subframe
// management to this frame.
type frameContext struct {
	frame *Frame
}

var _ Context = (*frameContext)(nil)

func (fc *frameContext) FrameName() string    { return fc.frame.Path() }
func (fc *frameContext) FrameID() string      { return fc.frame.id }
func (fc *frameContext) Realm() domain.Realm  { return fc.frame.realm }
func (fc *frameContext) HandlerCapable() bool { return fc.frame.handlerCapable }
func (fc *frameContext) Logger() *slog.Logger {
	return fc.frame.logger
}

func (fc *frameContext) Environments() message.Reader { return fc.frame.env.Reader() }
func (fc *frameContext) Requests() message.Updater    { return fc.frame.req.Updater() }
func (fc *frameContext) Commons() message.Updater     { return fc.frame.session.common.Updater() }
func (fc *frameContext) Locals() message.Manager      { return fc.frame.local.Manager() }

// CreateSubframe builds a child frame under this frame. Parallel frames
// are leaves and cannot have children.
func (fc *frameContext) CreateSubframe(routine Routine, opts ...Option) (*Frame, error) {
	parent := fc.frame
	if parent.realm == domain.RealmParallel {
		return nil, fmt.Errorf("frame %q: %w", parent.Path(), domain.ErrSubframeLeaf)
	}
	child, err := newFrame(routine, parent.handlerCapable, opts)
	if err != nil {
		return nil, err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if _, dup := parent.children[child.name]; dup {
		return nil, fmt.Errorf("frame %q: %w", child.name, domain.ErrDuplicateFrameName)
	}
	child.parent = parent
	parent.children[child.name] = child
	return child, nil
}

// StartSubframes launches children of this frame in a new sub-session
// that shares the common channel with the enclosing session. The routine
// owns the sub-session and should close or gather it before returning;
// either way the children's outcomes roll up into this frame's published
// result.
func (fc *frameContext) StartSubframes(ctx context.Context, frames ...*Frame) (*Session, error) {
	parent := fc.frame
	if parent.realm == domain.RealmParallel {
		return nil, fmt.Errorf("frame %q: %w", parent.Path(), domain.ErrSubframeLeaf)
	}
	for _, f := range frames {
		if f.parent != parent {
			return nil, fmt.Errorf("frame %q: %w", f.name, domain.ErrCrossContext)
		}
	}
	sub, err := newSession(SessionConfig{Logger: parent.logger, Events: parent.session.events}, parent.session.common)
	if err != nil {
		return nil, err
	}
	parent.mu.Lock()
	parent.subSessions = append(parent.subSessions, sub)
	parent.mu.Unlock()
	return sub, sub.launch(ctx, parent, frames)
}
