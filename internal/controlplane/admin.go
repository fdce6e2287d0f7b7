package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/observability"
	"github.com/kenelite/go-solo/internal/ratelimiter"
	"github.com/kenelite/go-solo/internal/registry"
	"github.com/kenelite/go-solo/internal/upstream"
)

// Deps are the collaborators the admin API drives.
type Deps struct {
	Manager *upstream.Manager
	Metrics *observability.Metrics
	Limiter *ratelimiter.Limiter
	Config  *config.Config
	Logger  *observability.Logger
}

type admin struct{ Deps }

// RegisterAdminHandlers mounts the admin API on mux. Mutating endpoints are
// rate limited per client IP when a limiter is set.
func RegisterAdminHandlers(mux *http.ServeMux, d Deps) {
	a := &admin{d}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.HandleFunc("GET /config", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, d.Config)
	})
	mux.HandleFunc("GET /resources", a.resources)

	mux.Handle("PUT /sessions/{name}", a.limit(a.openSession))
	mux.HandleFunc("GET /sessions/{name}", a.getSession)
	mux.HandleFunc("GET /sessions/{name}/target", a.nextTarget)
	mux.Handle("DELETE /sessions/{name}", a.limit(a.closeSession))
	mux.Handle("POST /sessions/{name}/retag", a.limit(a.retagSession))
	mux.Handle("DELETE /sessions", a.limit(a.closeAll))

	mux.Handle("PUT /prober", a.limit(a.showProber))
	mux.HandleFunc("GET /prober", a.getProber)
}

func (a *admin) limit(h http.HandlerFunc) http.Handler {
	if a.Limiter == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Limiter.Allow(ratelimiter.ClientIP(r.RemoteAddr)) {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		h(w, r)
	})
}

func (a *admin) resources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   a.Manager.Registry().Snapshot(),
		"upstreams": a.Manager.Upstreams(),
	})
}

func (a *admin) openSession(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("name")
	target := r.URL.Query().Get("upstream")
	if target == "" {
		target = tag
	}
	s, err := a.Manager.OpenAs(tag, target)
	if err != nil {
		a.fail(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

func (a *admin) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Manager.Lookup(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no live session"))
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

// nextTarget hands out the session's targets in round-robin order.
func (a *admin) nextTarget(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Manager.Lookup(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no live session"))
		return
	}
	u, err := s.Target()
	if err != nil {
		a.fail(w, "pick target", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session": s.ID, "target": u.String()})
}

func (a *admin) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Manager.Close(r.PathValue("name")); err != nil {
		a.fail(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *admin) retagSession(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing 'to' query parameter"))
		return
	}
	ok, err := a.Manager.Retag(r.PathValue("name"), to)
	if err != nil {
		a.fail(w, "retag session", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no live session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"from": r.PathValue("name"), "to": to})
}

func (a *admin) closeAll(w http.ResponseWriter, _ *http.Request) {
	if err := a.Manager.CloseAll(); err != nil {
		a.fail(w, "close all sessions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type proberView struct {
	ID       string                 `json:"id"`
	Sessions int                    `json:"sessions"`
	Results  []upstream.ProbeResult `json:"results"`
}

func viewProber(p *upstream.Prober) proberView {
	return proberView{ID: p.ID, Sessions: p.Sessions(), Results: p.Results()}
}

func (a *admin) showProber(w http.ResponseWriter, _ *http.Request) {
	p, err := a.Manager.Prober()
	if err != nil {
		a.fail(w, "show prober", err)
		return
	}
	writeJSON(w, http.StatusOK, viewProber(p))
}

func (a *admin) getProber(w http.ResponseWriter, _ *http.Request) {
	p, ok := a.Manager.CurrentProber()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("prober not running"))
		return
	}
	writeJSON(w, http.StatusOK, viewProber(p))
}

func (a *admin) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, upstream.ErrUnknownUpstream):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidTag):
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError && a.Logger != nil {
		a.Logger.Errorw(op, "err", err)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
