package domain

import (
	"context"
	"errors"
	"testing"
)

func TestFrameResultMarkOnce(t *testing.T) {
	r := NewFrameResult("worker", "id-1", RealmConcurrent, nil, errors.New("boom"))

	if err := r.SetIgnored(); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := r.SetUnexpected("later"); !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("second mark: got %v, want ErrAlreadyMarked", err)
	}
	if got := r.Mark(); got.Kind != MarkIgnored {
		t.Fatalf("mark kind: got %q", got.Kind)
	}
	if !r.Checked() {
		t.Fatal("marked result must count as checked")
	}
}

func TestFrameResultReraiseOnce(t *testing.T) {
	cause := errors.New("boom")
	r := NewFrameResult("worker", "id-1", RealmConcurrent, nil, cause)

	err := r.Reraise()
	if !errors.Is(err, cause) {
		t.Fatalf("first reraise: got %v", err)
	}
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Frame != "worker" {
		t.Fatalf("reraise wrapping: got %T %v", err, err)
	}
	if err := r.Reraise(); !errors.Is(err, ErrAlreadyRaised) {
		t.Fatalf("second reraise: got %v, want ErrAlreadyRaised", err)
	}
}

func TestFrameResultReraiseSuccess(t *testing.T) {
	r := NewFrameResult("worker", "id-1", RealmConcurrent, 42, nil)
	if err := r.Reraise(); err != nil {
		t.Fatalf("reraise on success: %v", err)
	}
	if r.Unchecked() {
		t.Fatal("successful result is never unchecked")
	}
}

func TestSessionResultCompletes(t *testing.T) {
	ok := NewFrameResult("a", "1", RealmConcurrent, "done", nil)
	bad := NewFrameResult("b", "2", RealmConcurrent, nil, errors.New("boom"))
	s := &SessionResult{Results: []*FrameResult{ok, bad}}

	if s.Completes() {
		t.Fatal("unreviewed failure must block completion")
	}
	var ce *CollectedError
	if err := s.Err(); !errors.As(err, &ce) || len(ce.Errs) != 1 {
		t.Fatalf("session err: got %v", err)
	}

	if err := bad.SetIgnored(); err != nil {
		t.Fatal(err)
	}
	if !s.Completes() {
		t.Fatal("ignored failure must not block completion")
	}
	if err := s.Err(); err != nil {
		t.Fatalf("session err after ignore: %v", err)
	}
	if got := s.Frame("b"); got != bad {
		t.Fatalf("frame lookup: got %v", got)
	}
}

func TestFrameResultNestedChildren(t *testing.T) {
	child := NewFrameResult("host/child", "2", RealmConcurrent, nil, errors.New("boom"))
	host := NewFrameResult("host", "1", RealmConcurrent, "done", nil)
	host.AttachChildren(&SessionResult{Results: []*FrameResult{child}})

	if host.Successful() {
		t.Fatal("an unresolved child failure must block the host's success")
	}
	if err := child.SetIgnored(); err != nil {
		t.Fatal(err)
	}
	if !host.Successful() {
		t.Fatal("an ignored child failure must not block the host's success")
	}
}

func TestFrameResultPendingChildren(t *testing.T) {
	host := NewFrameResult("host", "1", RealmConcurrent, "done", nil)
	host.AttachChildren(&SessionResult{Pending: 1})

	if host.Successful() {
		t.Fatal("a still-running child must block the host's success")
	}
	s := &SessionResult{Results: []*FrameResult{host}}
	if s.Completes() {
		t.Fatal("nested incompleteness must block completion")
	}
}

func TestSessionResultUnexpectedDescends(t *testing.T) {
	leaf := NewFrameResult("host/leaf", "3", RealmConcurrent, nil, errors.New("boom"))
	if err := leaf.SetUnexpected("must not happen"); err != nil {
		t.Fatal(err)
	}
	host := NewFrameResult("host", "1", RealmConcurrent, nil, nil)
	host.AttachChildren(&SessionResult{Results: []*FrameResult{leaf}})
	s := &SessionResult{Results: []*FrameResult{host}}

	got := s.Unexpected()
	if len(got) != 1 || got[0] != leaf {
		t.Fatalf("unexpected results: got %v", got)
	}
}

func TestPhaseOrder(t *testing.T) {
	if !PhaseLoad.Before(PhaseActive) || !PhaseActive.Before(PhaseTerminated) {
		t.Fatal("phase order broken")
	}
	if PhaseTerminated.Before(PhaseLoad) {
		t.Fatal("phases must not wrap")
	}
}

func TestLifecycleEventsMerge(t *testing.T) {
	var calls []string
	a := LifecycleEvents{OnFrameDone: func(context.Context, *FrameEvent) { calls = append(calls, "a") }}
	b := LifecycleEvents{OnFrameDone: func(context.Context, *FrameEvent) { calls = append(calls, "b") }}

	merged := a.Merge(b)
	merged.OnFrameDone(context.Background(), &FrameEvent{})
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("merge order: got %v", calls)
	}
	if merged.OnFrameStart != nil {
		t.Fatal("unset callbacks stay nil")
	}
}
