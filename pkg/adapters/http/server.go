// Package http exposes a read-only status surface over running sessions.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/arbor"
)

// StatusSource is the slice of a session the handler needs.
type StatusSource interface {
	ID() string
	Snapshot() arbor.SessionSnapshot
}

// Registry tracks the sessions exposed over HTTP.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]StatusSource
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]StatusSource)}
}

// Add exposes a session. Re-adding the same ID replaces the entry.
func (r *Registry) Add(s StatusSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Remove hides a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) get(id string) (StatusSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) all() []StatusSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StatusSource, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// NewHandler builds the status API over the registry:
//
//	GET /healthz              liveness probe
//	GET /sessions             snapshots of every exposed session
//	GET /sessions/{id}        snapshot of one session
func NewHandler(reg *Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		sources := reg.all()
		snaps := make([]arbor.SessionSnapshot, 0, len(sources))
		for _, s := range sources {
			snaps = append(snaps, s.Snapshot())
		}
		writeJSON(w, logger, snaps)
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		s, ok := reg.get(chi.URLParam(req, "id"))
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, s.Snapshot())
	})

	return r
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("encode status response", "err", err)
	}
}
