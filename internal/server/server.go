// Package server exposes the gate over HTTP: evaluation, the programmatic
// decision channel, and audit queries.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/writegate/writegate/internal/approval"
	"github.com/writegate/writegate/internal/config"
	"github.com/writegate/writegate/internal/gate"
	"github.com/writegate/writegate/internal/pathsec"
	"github.com/writegate/writegate/pkg/types"
)

// App wires the gate runtime into HTTP handlers.
type App struct {
	rt     *gate.Runtime
	apiKey string
	log    *slog.Logger
}

// NewApp builds the handler set. The API key (inline or from file) guards
// every endpoint when configured; without it an agent on localhost could
// resolve its own approvals.
func NewApp(rt *gate.Runtime, cfg config.ServerConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	key := cfg.APIKey
	if key == "" && cfg.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read api key file: %w", err)
		}
		key = strings.TrimSpace(string(data))
	}
	return &App{rt: rt, apiKey: key, log: log}, nil
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "ok\n") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "ready\n") })

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authMiddleware)
		r.Post("/evaluate", a.evaluate)
		r.Get("/approvals", a.listApprovals)
		r.Post("/approvals/{id}", a.resolveApproval)
		r.Get("/audit", a.queryAudit)
	})

	return r
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	}
}

func (a *App) authMiddleware(next http.Handler) http.Handler {
	if a.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) evaluate(w http.ResponseWriter, r *http.Request) {
	var req types.WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	res, err := a.rt.Gate.Evaluate(r.Context(), req)
	if err != nil {
		var (
			se *pathsec.SecurityError
			pe *pathsec.PolicyError
			ae *gate.AnalyzeError
		)
		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &se), errors.As(err, &pe):
			status = http.StatusForbidden
		case errors.As(err, &ae):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "result": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) listApprovals(w http.ResponseWriter, _ *http.Request) {
	if a.rt.Manager == nil {
		writeJSON(w, http.StatusOK, []approval.Prompt{})
		return
	}
	writeJSON(w, http.StatusOK, a.rt.Manager.ListPending())
}

func (a *App) resolveApproval(w http.ResponseWriter, r *http.Request) {
	if a.rt.Manager == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "api decision channel not enabled"})
		return
	}
	id := chi.URLParam(r, "id")
	var req struct {
		Token string `json:"token"`
		By    string `json:"by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if ok := a.rt.Manager.Resolve(id, req.Token, req.By); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "approval not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) queryAudit(w http.ResponseWriter, r *http.Request) {
	q, err := parseAuditQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	recs, err := a.rt.Store.Query(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []types.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func parseAuditQuery(r *http.Request) (types.AuditQuery, error) {
	v := r.URL.Query()
	var q types.AuditQuery
	q.PathLike = v.Get("path_like")
	if o := v.Get("outcome"); o != "" {
		for _, s := range strings.Split(o, ",") {
			q.Outcomes = append(q.Outcomes, types.AuditOutcome(s))
		}
	}
	if s := v.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("since: %w", err)
		}
		q.Since = &t
	}
	if s := v.Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("until: %w", err)
		}
		q.Until = &t
	}
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	q.Offset, _ = strconv.Atoi(v.Get("offset"))
	q.Asc = v.Get("order") == "asc"
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
