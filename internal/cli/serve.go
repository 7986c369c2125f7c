package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/observability"
)

// ServeOptions controls RunServe.
type ServeOptions struct {
	Logger *slog.Logger
	Out    io.Writer
	Addr   string
}

// RunServe runs a scenario while exposing its status and Prometheus
// metrics over HTTP. The server stays up until the context is
// cancelled, so finished sessions remain inspectable.
func RunServe(ctx context.Context, path string, opts ServeOptions) error {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	sc, err := LoadScenario(path)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(promReg)
	if err != nil {
		return err
	}

	frames, err := buildFrames(sc)
	if err != nil {
		return err
	}
	session, err := arbor.StartSession(ctx, arbor.SessionConfig{
		Logger:  opts.Logger,
		Events:  metrics.Events(),
		Commons: sc.Commons,
	}, frames...)
	if err != nil {
		return err
	}

	sessions := arborhttp.NewRegistry()
	sessions.Add(session)

	mux := chi.NewRouter()
	mux.Mount("/", arborhttp.NewHandler(sessions, opts.Logger))
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: opts.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	opts.Logger.Info("status server listening", "addr", opts.Addr)

	go func() {
		session.WaitDone(-1)
		renderSnapshot(opts.Out, session.Snapshot())
		session.AbandonUncheckedErrors()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
