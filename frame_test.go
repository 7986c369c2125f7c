package arbor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

func payloadRoutine(ctx context.Context, fc Context) (any, error) {
	return "ok", nil
}

func TestNewFrameDerivesName(t *testing.T) {
	f, err := NewFrame(payloadRoutine)
	if err != nil {
		t.Fatalf("new frame: %v", err)
	}
	if f.Name() != "payloadRoutine" {
		t.Fatalf("derived name: got %q", f.Name())
	}
	if f.Realm() != domain.RealmConcurrent {
		t.Fatalf("default realm: got %v", f.Realm())
	}
	if f.Phase() != domain.PhaseLoad {
		t.Fatalf("initial phase: got %v", f.Phase())
	}
}

func TestNewFrameAnonymousNeedsName(t *testing.T) {
	_, err := NewFrame(func(context.Context, Context) (any, error) { return nil, nil })
	if !errors.Is(err, domain.ErrFrameName) {
		t.Fatalf("anonymous routine: got %v, want ErrFrameName", err)
	}

	f, err := NewFrame(func(context.Context, Context) (any, error) { return nil, nil }, WithName("worker"))
	if err != nil || f.Name() != "worker" {
		t.Fatalf("WithName: got %v, %v", f, err)
	}
}

func TestNewFrameRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "a/b", "two words"} {
		if _, err := NewFrame(payloadRoutine, WithName(name)); !errors.Is(err, domain.ErrFrameName) {
			t.Fatalf("name %q: got %v, want ErrFrameName", name, err)
		}
	}
}

func TestSimpleFrameRefusesHooks(t *testing.T) {
	f, err := NewSimpleFrame(payloadRoutine)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetHooks(Hooks{}); !errors.Is(err, domain.ErrNoHandlerCapable) {
		t.Fatalf("hooks on simple frame: got %v, want ErrNoHandlerCapable", err)
	}
	if _, err := NewSimpleFrame(payloadRoutine, WithHooks(Hooks{})); !errors.Is(err, domain.ErrNoHandlerCapable) {
		t.Fatalf("WithHooks on simple frame: got %v", err)
	}
}

func TestParallelFrameNeedsRegisteredName(t *testing.T) {
	_, err := NewFrame(nil, WithSubprocessRoutine(""))
	if err == nil {
		t.Fatal("empty subprocess routine must fail")
	}

	f, err := NewFrame(nil, WithSubprocessRoutine("crunch"))
	if err != nil {
		t.Fatalf("parallel frame: %v", err)
	}
	if f.Realm() != domain.RealmParallel || f.Name() != "crunch" {
		t.Fatalf("parallel frame: realm=%v name=%q", f.Realm(), f.Name())
	}
}

func TestParallelStartRejectsUnserializableValues(t *testing.T) {
	f, err := NewFrame(nil, WithSubprocessRoutine("crunch"), WithName("ser"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetEnvironments(map[string]any{"cb": func() {}}); err != nil {
		t.Fatalf("define before the check is armed: %v", err)
	}

	_, err = StartSession(context.Background(), quiet(), f)
	if !errors.Is(err, message.ErrNotSerializable) {
		t.Fatalf("parallel start: got %v, want ErrNotSerializable", err)
	}
	if errors.Is(err, message.ErrTypeMismatch) {
		t.Fatal("serialization failure must not read as a type mismatch")
	}
}

func TestConfigurationLocksAfterStart(t *testing.T) {
	release := make(chan struct{})
	f, err := NewFrame(func(ctx context.Context, fc Context) (any, error) {
		<-release
		return nil, nil
	}, WithName("slow"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetEnvironments(map[string]any{"limit": 3}); err != nil {
		t.Fatalf("pre-start env: %v", err)
	}

	s, err := Start(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		close(release)
		_ = s.Close()
	}()

	if err := f.SetEnvironments(map[string]any{"late": 1}); !errors.Is(err, domain.ErrFrameStarted) {
		t.Fatalf("post-start env: got %v, want ErrFrameStarted", err)
	}
	if err := f.SetHooks(Hooks{}); !errors.Is(err, domain.ErrFrameStarted) {
		t.Fatalf("post-start hooks: got %v, want ErrFrameStarted", err)
	}
	if _, startErr := Start(context.Background(), f); !errors.Is(startErr, domain.ErrFrameStarted) {
		t.Fatalf("second start: got %v, want ErrFrameStarted", startErr)
	}
}

func TestRoutineSeesTypedChannels(t *testing.T) {
	f, err := NewFrame(func(ctx context.Context, fc Context) (any, error) {
		limit, err := message.Get[int](fc.Environments(), "limit")
		if err != nil {
			return nil, err
		}
		if err := message.Define(fc.Locals(), "scratch", limit*2); err != nil {
			return nil, err
		}
		return message.Get[int](fc.Locals(), "scratch")
	}, WithName("typed"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetEnvironments(map[string]any{"limit": 21}); err != nil {
		t.Fatal(err)
	}

	s, err := Start(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WaitDoneAndRaise(5 * time.Second); err != nil {
		t.Fatalf("session failed: %v", err)
	}
	result, err := s.FrameResult("typed")
	if err != nil {
		t.Fatal(err)
	}
	if result.Value() != 42 {
		t.Fatalf("routine value: got %v", result.Value())
	}
}
