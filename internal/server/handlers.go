package server

import (
	"encoding/json"
	"net/http"

	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/routes"
)

type handlers struct {
	collector *metrics.Collector
	routes    *routes.Table
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Snapshot())
}

func (h *handlers) routeTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.routes.Entries())
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Logs())
}

func (h *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path query parameter required"})
		return
	}
	m, ok := h.routes.Resolve(path)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no route matches " + path})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
