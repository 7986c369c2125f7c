package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventFrameStart EventType = "frame_start"
	EventFrameDone  EventType = "frame_done"
	EventStage      EventType = "stage"
)

// Stage names one step of a frame's circuit.
type Stage string

const (
	StageOpen      Stage = "open"
	StageStart     Stage = "start"
	StageRoutine   Stage = "routine"
	StageEnd       Stage = "end"
	StageRedo      Stage = "redo"
	StageException Stage = "exception"
	StageClose     Stage = "close"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FrameName string    `json:"frame_name"`
	FrameID   string    `json:"frame_id"`
	Realm     Realm     `json:"realm"`
}

// FrameEvent marks a frame entering or leaving the active phase.
type FrameEvent struct {
	EventBase
	Successful bool   `json:"successful,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StageEvent marks the completion of a circuit stage.
type StageEvent struct {
	EventBase
	Stage   Stage  `json:"stage"`
	Cycle   int    `json:"cycle"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LifecycleEvents defines callbacks for runtime observability. Nil
// callbacks are skipped; callbacks must not block.
type LifecycleEvents struct {
	OnFrameStart func(context.Context, *FrameEvent)
	OnFrameDone  func(context.Context, *FrameEvent)
	OnStage      func(context.Context, *StageEvent)
}

// Merge layers other on top of e: both sets of callbacks fire.
func (e LifecycleEvents) Merge(other LifecycleEvents) LifecycleEvents {
	return LifecycleEvents{
		OnFrameStart: merge2(e.OnFrameStart, other.OnFrameStart),
		OnFrameDone:  merge2(e.OnFrameDone, other.OnFrameDone),
		OnStage:      mergeStage(e.OnStage, other.OnStage),
	}
}

func merge2(a, b func(context.Context, *FrameEvent)) func(context.Context, *FrameEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(ctx context.Context, ev *FrameEvent) { a(ctx, ev); b(ctx, ev) }
	}
}

func mergeStage(a, b func(context.Context, *StageEvent)) func(context.Context, *StageEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(ctx context.Context, ev *StageEvent) { a(ctx, ev); b(ctx, ev) }
	}
}
