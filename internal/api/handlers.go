package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/catalog"
)

const readyTimeout = 2 * time.Second

type handlers struct {
	catalog catalog.Catalog
	checks  []Check
	logger  zerolog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready answers 503 with the failing checks when a dependency is down.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) searchByCode(w http.ResponseWriter, r *http.Request) {
	modules, err := h.catalog.SearchByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (h *handlers) searchModules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{"modules": []catalog.Module{}})
		return
	}
	modules, err := h.catalog.SearchByName(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (h *handlers) courses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.Courses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (h *handlers) moduleInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "module id must be an integer")
		return
	}
	info, ok, err := h.catalog.ModuleInfo(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Module not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"yearsInfo": info})
}

func (h *handlers) user(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "Authentication not yet implemented")
}

// fail reports a catalog error as 400 with the error text.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Err(err).Str("path", r.URL.Path).Msg("catalog query failed")
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
