package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/arbor/pkg/domain"
)

// Metrics exports the frame lifecycle as Prometheus collectors.
type Metrics struct {
	framesStarted *prometheus.CounterVec
	framesDone    *prometheus.CounterVec
	stages        *prometheus.CounterVec
	frameDuration *prometheus.HistogramVec

	starts sync.Map // frame ID -> time.Time
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_frames_started_total",
				Help: "Total number of frames started",
			},
			[]string{"realm"},
		),
		framesDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_frames_done_total",
				Help: "Total number of frames terminated",
			},
			[]string{"realm", "status"},
		),
		stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_circuit_stages_total",
				Help: "Total number of completed circuit stages",
			},
			[]string{"stage", "status"},
		),
		frameDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "arbor_frame_duration_seconds",
				Help: "Wall time from frame start to published result",
			},
			[]string{"realm"},
		),
	}
	for _, c := range []prometheus.Collector{m.framesStarted, m.framesDone, m.stages, m.frameDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Events returns the lifecycle callbacks that feed the collectors. Merge
// them into a session or frame configuration.
func (m *Metrics) Events() domain.LifecycleEvents {
	return domain.LifecycleEvents{
		OnFrameStart: func(_ context.Context, ev *domain.FrameEvent) {
			m.framesStarted.WithLabelValues(string(ev.Realm)).Inc()
			m.starts.Store(ev.FrameID, ev.Timestamp)
		},
		OnFrameDone: func(_ context.Context, ev *domain.FrameEvent) {
			status := "ok"
			if !ev.Successful {
				status = "error"
			}
			m.framesDone.WithLabelValues(string(ev.Realm), status).Inc()
			if v, ok := m.starts.LoadAndDelete(ev.FrameID); ok {
				m.frameDuration.WithLabelValues(string(ev.Realm)).
					Observe(ev.Timestamp.Sub(v.(time.Time)).Seconds())
			}
		},
		OnStage: func(_ context.Context, ev *domain.StageEvent) {
			status := "ok"
			if ev.IsError {
				status = "error"
			}
			m.stages.WithLabelValues(string(ev.Stage), status).Inc()
		},
	}
}
