package devserver

import (
	"net/http"
	"runtime"
	"time"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) metricsJSON(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"system_memory_used_bytes":             mem.Sys,
		"typesense_memory_allocated_bytes":     mem.Alloc,
		"typesense_memory_active_bytes":        mem.HeapInuse,
		"typesense_memory_fragmentation_ratio": 0,
		"system_cpu_active_percentage":         0,
	})
}

func (s *Server) statsJSON(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.started).Seconds()
	searches := float64(s.searches.Load())
	rate := 0.0
	if uptime > 0 {
		rate = searches / uptime
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"search_requests_per_second": rate,
		"total_requests_per_second":  rate,
		"search_latency_ms":          0,
		"latency_ms":                 map[string]any{},
		"requests_per_second":        map[string]any{},
	})
}

func (s *Server) debug(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": 1, "version": s.version})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("snapshot_path") == "" {
		writeError(w, http.StatusBadRequest, "Parameter `snapshot_path` is required.")
		return
	}
	s.operationOK(w, r)
}

func (s *Server) operationOK(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
