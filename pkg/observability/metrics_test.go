package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestMetricsCountFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	events := m.Events()

	start := time.Now()
	base := domain.EventBase{
		Timestamp: start,
		FrameName: "worker",
		FrameID:   "id-1",
		Realm:     domain.RealmConcurrent,
	}
	events.OnFrameStart(context.Background(), &domain.FrameEvent{EventBase: base})

	done := base
	done.Timestamp = start.Add(50 * time.Millisecond)
	events.OnFrameDone(context.Background(), &domain.FrameEvent{EventBase: done, Successful: false, Error: "boom"})

	if got := testutil.ToFloat64(m.framesStarted.WithLabelValues("concurrent")); got != 1 {
		t.Fatalf("frames started: got %v", got)
	}
	if got := testutil.ToFloat64(m.framesDone.WithLabelValues("concurrent", "error")); got != 1 {
		t.Fatalf("frames done: got %v", got)
	}
	if _, tracked := m.starts.Load("id-1"); tracked {
		t.Fatal("start timestamp must be released after done")
	}
}

func TestMetricsCountStages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	events := m.Events()

	events.OnStage(context.Background(), &domain.StageEvent{Stage: domain.StageRoutine})
	events.OnStage(context.Background(), &domain.StageEvent{Stage: domain.StageRoutine, IsError: true, Error: "boom"})

	if got := testutil.ToFloat64(m.stages.WithLabelValues("routine", "ok")); got != 1 {
		t.Fatalf("ok stages: got %v", got)
	}
	if got := testutil.ToFloat64(m.stages.WithLabelValues("routine", "error")); got != 1 {
		t.Fatalf("error stages: got %v", got)
	}
}
